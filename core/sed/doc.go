// Package sed implements a stream editor: a compiler that turns sed script
// text into an ordered list of commands, and an engine that runs those
// commands over one or more line-oriented input streams while keeping a
// pattern space and a hold space between lines.
//
// A typical caller compiles once and runs many times:
//
//	script, err := sed.Compile("s/foo/bar/g", sed.CompileOptions{})
//	...
//	eng, err := sed.New(script, sed.Options{})
//	...
//	defer eng.Close()
//	out := eng.Run(sed.Input{Name: "-", Reader: os.Stdin})
//	for out.Scan() {
//		io.WriteString(os.Stdout, out.Text())
//	}
//	err = out.Err()
package sed
