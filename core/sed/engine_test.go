package sed

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScript(t *testing.T, script string, opts Options, inputs ...string) string {
	t.Helper()

	compiled, err := Compile(script, opts.CompileOptions())
	require.NoError(t, err)

	var in []Input
	for i, text := range inputs {
		in = append(in, Input{Name: "in" + string(rune('0'+i)), Reader: strings.NewReader(text)})
	}

	var out bytes.Buffer
	_, err = Execute(&out, compiled, opts, in...)
	require.NoError(t, err)
	return out.String()
}

func TestEngine(t *testing.T) {
	numbered := "1\n2\n3\n4\n5\n"

	cases := map[string]struct {
		script string
		opts   Options
		inputs []string
		want   string
	}{
		"empty script copies input": {
			script: "",
			inputs: []string{"a\nb\n"},
			want:   "a\nb\n",
		},
		"quiet print reproduces input": {
			script: "p",
			opts:   Options{Quiet: true},
			inputs: []string{"a\nb\nc\n"},
			want:   "a\nb\nc\n",
		},
		"print duplicates": {
			script: "p",
			inputs: []string{"a\nb\n"},
			want:   "a\na\nb\nb\n",
		},
		"first match": {
			script: "s/a/b/",
			inputs: []string{"aaa\n"},
			want:   "baa\n",
		},
		"global": {
			script: "s/a/b/g",
			inputs: []string{"aaa\n"},
			want:   "bbb\n",
		},
		"nth match": {
			script: "s/a/b/2",
			inputs: []string{"aaa\n"},
			want:   "aba\n",
		},
		"count beats global": {
			script: "s/a/b/2g",
			inputs: []string{"aaa\n"},
			want:   "aba\n",
		},
		"count past matches": {
			script: "s/a/b/4",
			inputs: []string{"aaa\n"},
			want:   "aaa\n",
		},
		"line range delete": {
			script: "2,4d",
			inputs: []string{numbered},
			want:   "1\n5\n",
		},
		"range to last line": {
			script: "3,$d",
			inputs: []string{numbered},
			want:   "1\n2\n",
		},
		"regexp range": {
			script: "/start/,/end/d",
			inputs: []string{"a\nstart\nb\nend\nc\nstart\nd\n"},
			want:   "a\nc\n",
		},
		"range end before start stays open": {
			script: "3,1d",
			inputs: []string{numbered},
			want:   "1\n2\n",
		},
		"range closing regexp checked after first line": {
			script: "/x/,/x/d",
			inputs: []string{"a\nx\nb\nx\nc\n"},
			want:   "a\nc\n",
		},
		"negated range": {
			script: "2,3!d",
			inputs: []string{numbered},
			want:   "2\n3\n",
		},
		"line zero range closes on first line": {
			script: "0,/1/d",
			inputs: []string{numbered},
			want:   "2\n3\n4\n5\n",
		},
		"line zero range": {
			script: "0,/3/d",
			inputs: []string{numbered},
			want:   "4\n5\n",
		},
		"relative range": {
			script: "2,+2d",
			inputs: []string{numbered},
			want:   "1\n5\n",
		},
		"relative range of zero lines": {
			script: "2,+0d",
			inputs: []string{numbered},
			want:   "1\n3\n4\n5\n",
		},
		"relative range reopens": {
			script: "/[13]/,+1d",
			inputs: []string{numbered},
			want:   "5\n",
		},
		"multiple range": {
			script: "2,~4d",
			inputs: []string{numbered},
			want:   "1\n5\n",
		},
		"multiple range starting on a multiple": {
			script: "4,~4d",
			inputs: []string{numbered},
			want:   "1\n2\n3\n5\n",
		},
		"step": {
			script: "0~2d",
			inputs: []string{numbered},
			want:   "1\n3\n5\n",
		},
		"step from first": {
			script: "2~3p",
			opts:   Options{Quiet: true},
			inputs: []string{"1\n2\n3\n4\n5\n6\n7\n8\n"},
			want:   "2\n5\n8\n",
		},
		"last line": {
			script: "$p",
			opts:   Options{Quiet: true},
			inputs: []string{numbered},
			want:   "5\n",
		},
		"last line spans inputs": {
			script: "$p",
			opts:   Options{Quiet: true},
			inputs: []string{"a\nb\n", "c\nd\n"},
			want:   "d\n",
		},
		"line numbers span inputs": {
			script: "=",
			opts:   Options{Quiet: true},
			inputs: []string{"a\n", "b\n"},
			want:   "1\n2\n",
		},
		"separate resets line numbers": {
			script: "1p;$p",
			opts:   Options{Quiet: true, Separate: true},
			inputs: []string{"a\nb\n", "c\nd\n"},
			want:   "a\nb\nc\nd\n",
		},
		"next append spans inputs": {
			script: "N;s/\\n/+/",
			inputs: []string{"a\n", "b\n"},
			want:   "a+b\n",
		},
		"separate next append at end of each input": {
			script: "N",
			opts:   Options{Separate: true},
			inputs: []string{"a\n", "b\n"},
			want:   "a\nb\n",
		},
		"separate next at end of each input": {
			script: "n;d",
			opts:   Options{Separate: true},
			inputs: []string{"1\n2\n3\n", "4\n"},
			want:   "1\n3\n4\n",
		},
		"separate last line of each input": {
			script: "$!N;s/\\n/+/",
			opts:   Options{Separate: true},
			inputs: []string{"a\nb\nc\n", "d\ne\n"},
			want:   "a+b\nc\nd+e\n",
		},
		"separate line zero range per input": {
			script: "0,/x/d",
			opts:   Options{Separate: true},
			inputs: []string{"x\na\n", "b\nx\nc\n"},
			want:   "a\nc\n",
		},
		"hold then exchange is identity": {
			script: "h;x",
			inputs: []string{"a\nb\n"},
			want:   "a\nb\n",
		},
		"reverse lines": {
			script: "1!G;h;$!d",
			inputs: []string{"1\n2\n3\n"},
			want:   "3\n2\n1\n",
		},
		"hold append and get": {
			script: "H;$!d;g",
			inputs: []string{"a\nb\n"},
			want:   "\na\nb\n",
		},
		"branch taken only after change": {
			script: "s/x/y/;tend;s/z/q/;:end",
			inputs: []string{"x\nz\nxz\nw\n"},
			want:   "y\nq\nyz\nw\n",
		},
		"unconditional branch to end": {
			script: "b;s/a/b/",
			inputs: []string{"a\n"},
			want:   "a\n",
		},
		"branch to label": {
			script: "b skip\ns/a/b/\n:skip\ns/a/c/",
			inputs: []string{"a\n"},
			want:   "c\n",
		},
		"loop with test": {
			script: ":a;s/aa/a/;ta",
			inputs: []string{"aaaaa\n"},
			want:   "a\n",
		},
		"test not": {
			script: "s/x/X/;Tno;s/$/ yes/;b;:no;s/$/ no/",
			inputs: []string{"x\ny\n"},
			want:   "X yes\ny no\n",
		},
		"unchanged substitution leaves flag clear": {
			script: "s/a/a/;tend;s/$/!/;:end",
			inputs: []string{"a\n"},
			want:   "a!\n",
		},
		"flag reset each cycle": {
			script: "1s/a/b/;2tend;s/$/!/;:end",
			inputs: []string{"a\na\n"},
			want:   "b!\na!\n",
		},
		"insert and append": {
			script: "i\\\nbefore\na after",
			inputs: []string{"x\n"},
			want:   "before\nx\nafter\n",
		},
		"append survives delete": {
			script: "a after\nd",
			inputs: []string{"x\n"},
			want:   "after\n",
		},
		"change single line": {
			script: "2c\\\nchanged",
			inputs: []string{"1\n2\n3\n"},
			want:   "1\nchanged\n3\n",
		},
		"change range once": {
			script: "2,4c gone",
			inputs: []string{numbered},
			want:   "1\ngone\n5\n",
		},
		"change negated range every line": {
			script: "2,4!c x",
			inputs: []string{numbered},
			want:   "x\n2\n3\n4\nx\n",
		},
		"quit prints": {
			script: "2q",
			inputs: []string{numbered},
			want:   "1\n2\n",
		},
		"quit silent": {
			script: "2Q",
			inputs: []string{numbered},
			want:   "1\n",
		},
		"quit flushes appends": {
			script: "1a x\n1q",
			inputs: []string{numbered},
			want:   "1\nx\n",
		},
		"next": {
			script: "n;d",
			inputs: []string{numbered},
			want:   "1\n3\n5\n",
		},
		"next at end prints and stops": {
			script: "$!d;n;s/^/no/",
			inputs: []string{"1\n2\n"},
			want:   "2\n",
		},
		"next append joins": {
			script: "N;s/\\n/-/",
			inputs: []string{"1\n2\n3\n4\n"},
			want:   "1-2\n3-4\n",
		},
		"next append at end prints": {
			script: "N;s/\\n/-/",
			inputs: []string{"1\n2\n3\n"},
			want:   "1-2\n3\n",
		},
		"next append at end quiet": {
			script: "N;p",
			opts:   Options{Quiet: true},
			inputs: []string{"1\n2\n3\n"},
			want:   "1\n2\n",
		},
		"delete first line restarts": {
			script: "$!N;P;D",
			inputs: []string{"1\n2\n3\n"},
			want:   "1\n2\n3\n",
		},
		"print first line": {
			script: "N;P;d",
			inputs: []string{"1\n2\n"},
			want:   "1\n",
		},
		"line number": {
			script: "/b/=",
			inputs: []string{"a\nb\n"},
			want:   "a\n2\nb\n",
		},
		"transliterate": {
			script: "y/abc/xyz/",
			inputs: []string{"aabbcc\n"},
			want:   "xxyyzz\n",
		},
		"transliterate newline": {
			script: "N;y/\\n/ /",
			inputs: []string{"a\nb\n"},
			want:   "a b\n",
		},
		"zap": {
			script: "z;s/^$/empty/",
			inputs: []string{"a\n"},
			want:   "empty\n",
		},
		"filename": {
			script: "F",
			inputs: []string{"a\n"},
			want:   "in0\na\n",
		},
		"blocks": {
			script: "/x/{s/x/y/;s/y/z/}",
			inputs: []string{"x\na\n"},
			want:   "z\na\n",
		},
		"nested blocks": {
			script: "1,3{/2/{d}}",
			inputs: []string{numbered},
			want:   "1\n3\n4\n5\n",
		},
		"branch closes block": {
			script: "/a/{s/a/b/;b};s/$/!/",
			inputs: []string{"a\nc\n"},
			want:   "b\nc!\n",
		},
		"replacement references": {
			script: `s/\(a\)\(b\)/\2\1&/`,
			inputs: []string{"ab\n"},
			want:   "baab\n",
		},
		"host group references": {
			script: "s/(?P<first>a)(b)/$2${first}/",
			opts:   Options{ExtendedRegexp: true},
			inputs: []string{"ab\n"},
			want:   "ba\n",
		},
		"extended syntax": {
			script: "s/(a|b)+/X/",
			opts:   Options{ExtendedRegexp: true},
			inputs: []string{"abba!\n"},
			want:   "X!\n",
		},
		"basic literals": {
			script: "s/(a|b)+/X/",
			inputs: []string{"(a|b)+ and ab\n"},
			want:   "X and ab\n",
		},
		"case insensitive": {
			script: "s/hello/bye/I",
			inputs: []string{"HeLLo\n"},
			want:   "bye\n",
		},
		"custom address delimiter": {
			script: `\,a/b,d`,
			inputs: []string{"a/b\nc\n"},
			want:   "c\n",
		},
		"custom substitute delimiter": {
			script: "s|/|_|g",
			inputs: []string{"/a/b\n"},
			want:   "_a_b\n",
		},
		"substitute print": {
			script: "s/a/b/p",
			opts:   Options{Quiet: true},
			inputs: []string{"a\nc\n"},
			want:   "b\n",
		},
		"empty matches": {
			script: "s/x*/-/g",
			inputs: []string{"abc\n"},
			want:   "-a-b-c-\n",
		},
		"missing trailing newline kept": {
			script: "s/a/b/",
			inputs: []string{"a\na"},
			want:   "b\nb",
		},
		"missing trailing newline restored before more output": {
			script: "$a end",
			inputs: []string{"a"},
			want:   "a\nend\n",
		},
		"missing newline between inputs": {
			script: "",
			inputs: []string{"a", "b\n"},
			want:   "a\nb\n",
		},
		"null data": {
			script: "s/a/b/",
			opts:   Options{NullData: true},
			inputs: []string{"a\x00a\nb\x00"},
			want:   "b\x00b\nb\x00",
		},
		"list": {
			script: "l",
			opts:   Options{Quiet: true},
			inputs: []string{"a\tb\\\n"},
			want:   "a\\tb\\\\$\n",
		},
		"list wraps": {
			script: "l 5",
			opts:   Options{Quiet: true},
			inputs: []string{"abcdefghij\n"},
			want:   "abcd\\\nefgh\\\nij$\n",
		},
		"write stdout": {
			script: "w /dev/stdout",
			inputs: []string{"a\n"},
			want:   "a\na\n",
		},
		"comments": {
			script: "# leading\n\ns/a/b/ # trailing\n#n",
			inputs: []string{"a\n"},
			want:   "b\n",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got := runScript(t, tc.script, tc.opts, tc.inputs...)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_autoprintOneToOne(t *testing.T) {
	scripts := []string{"", "s/a/b/", "h;x", "y/ab/ba/", "s/x*/y/g", "=;p"}
	input := "alpha\nbeta\ngamma\ndelta\n"

	for _, script := range scripts {
		t.Run(script, func(t *testing.T) {
			out := runScript(t, script, Options{}, input)
			primary := strings.Count(out, "\n")
			if strings.Contains(script, "=") {
				// = and p each add one line per input line.
				primary -= 8
			}
			assert.Equal(t, 4, primary)
		})
	}
}

func TestEngine_exitCode(t *testing.T) {
	script := MustCompile("/stop/q5", CompileOptions{})

	var out bytes.Buffer
	code, err := Execute(&out, script, Options{}, Input{Name: "-", Reader: strings.NewReader("a\nstop\nb\n")})
	require.NoError(t, err)
	assert.Equal(t, 5, code)
	assert.Equal(t, "a\nstop\n", out.String())
}

func TestEngine_quitStopsLaterRuns(t *testing.T) {
	eng, err := New(MustCompile("q", CompileOptions{}), Options{})
	require.NoError(t, err)
	defer eng.Close()

	first := eng.Run(Input{Reader: strings.NewReader("a\nb\n")})
	require.True(t, first.Scan())
	assert.Equal(t, "a\n", first.Text())
	assert.False(t, first.Scan())
	assert.True(t, eng.Quit())

	second := eng.Run(Input{Reader: strings.NewReader("c\n")})
	assert.False(t, second.Scan())
}

func TestEngine_nextAtEndKeepsLaterRuns(t *testing.T) {
	eng, err := New(MustCompile("N;s/\\n/+/", CompileOptions{}), Options{})
	require.NoError(t, err)
	defer eng.Close()

	first := eng.Run(Input{Reader: strings.NewReader("a\n")})
	require.True(t, first.Scan())
	assert.Equal(t, "a\n", first.Text())
	assert.False(t, first.Scan())
	assert.False(t, eng.Quit())

	second := eng.Run(Input{Reader: strings.NewReader("b\nc\n")})
	require.True(t, second.Scan())
	assert.Equal(t, "b+c\n", second.Text())
}

func TestEngine_holdPersistsAcrossRuns(t *testing.T) {
	eng, err := New(MustCompile("x", CompileOptions{}), Options{})
	require.NoError(t, err)
	defer eng.Close()

	collect := func(text string) []string {
		var lines []string
		out := eng.Run(Input{Reader: strings.NewReader(text)})
		for out.Scan() {
			lines = append(lines, out.Text())
		}
		require.NoError(t, out.Err())
		return lines
	}

	assert.Equal(t, []string{"\n", "a\n"}, collect("a\nb\n"))
	assert.Equal(t, []string{"b\n"}, collect("c\n"))
}

func TestEngine_lazy(t *testing.T) {
	eng, err := New(MustCompile("p", CompileOptions{}), Options{Quiet: true})
	require.NoError(t, err)
	defer eng.Close()

	r := &countingReader{Reader: strings.NewReader("a\nb\nc\n")}
	out := eng.Run(Input{Reader: r})

	require.True(t, out.Scan())
	assert.Equal(t, "a\n", out.Text())
	assert.Equal(t, "a\n", string(r.Consumed()), "read past the current line")
}

type countingReader struct {
	Reader   *strings.Reader
	consumed []byte
}

func (c *countingReader) Read(p []byte) (int, error) {
	// One byte at a time so bufio can't read ahead.
	if len(p) > 1 {
		p = p[:1]
	}
	n, err := c.Reader.Read(p)
	c.consumed = append(c.consumed, p[:n]...)
	return n, err
}

func (c *countingReader) Consumed() []byte {
	return c.consumed
}

func TestEngine_undefinedLabel(t *testing.T) {
	// Scripts built by hand skip the compiler's check; New must catch it.
	script := &Script{Commands: []Command{
		{Kind: KindPrint, Line: 1},
		{Kind: KindBranch, Label: "nowhere", Line: 2},
	}}

	_, err := New(script, Options{})
	var labelErr *UndefinedLabelError
	require.True(t, errors.As(err, &labelErr))
	assert.Equal(t, "nowhere", labelErr.Label)
}

func TestEngine_reusesCompiledLabels(t *testing.T) {
	script := MustCompile(":top\ns/a/b/\nt top", CompileOptions{})

	eng, err := New(script, Options{})
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, reflect.ValueOf(script.labels).Pointer(), reflect.ValueOf(eng.labels).Pointer())
	assert.Equal(t, map[string]int{"top": 0}, eng.labels)
}

func TestEngine_handBuiltLabels(t *testing.T) {
	script := &Script{Commands: []Command{
		{Kind: KindLabel, Label: "top", Line: 1},
		{Kind: KindDelete, Line: 2},
	}}

	eng, err := New(script, Options{})
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, map[string]int{"top": 0}, eng.labels)
}

func TestEngine_readError(t *testing.T) {
	script := MustCompile("p", CompileOptions{})
	var out bytes.Buffer

	_, err := Execute(&out, script, Options{Quiet: true},
		Input{Name: "ok", Reader: strings.NewReader("a\n")},
		Input{Name: "bad", Reader: failingReader{}})

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "bad", ioErr.Path)
	assert.Equal(t, "a\n", out.String(), "output before the failure is kept")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device on fire")
}

func TestEngine_sideFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/insert.txt", []byte("one\ntwo\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/lines.txt", []byte("L1\nL2\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/out.txt", []byte("stale\n"), 0644))

	cases := map[string]struct {
		script string
		want   string
	}{
		"read file":          {"1r /insert.txt", "a\none\ntwo\nb\n"},
		"read missing file":  {"r /missing.txt", "a\nb\n"},
		"read line":          {"R /lines.txt", "a\nL1\nb\nL2\n"},
		"read line runs out": {"R /lines.txt\nR /lines.txt", "a\nL1\nL2\nb\n"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			got := runScript(t, tc.script, Options{FS: fs}, "a\nb\n")
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("write file", func(t *testing.T) {
		got := runScript(t, "/b/w /out.txt\ns/a/x/w /out.txt", Options{FS: fs}, "a\nb\nc\n")
		assert.Equal(t, "x\nb\nc\n", got)

		content, err := afero.ReadFile(fs, "/out.txt")
		require.NoError(t, err)
		assert.Equal(t, "x\nb\n", string(content))
	})

	t.Run("write first line", func(t *testing.T) {
		runScript(t, "N;W /first.txt", Options{FS: fs}, "a\nb\n")

		content, err := afero.ReadFile(fs, "/first.txt")
		require.NoError(t, err)
		assert.Equal(t, "a\n", string(content))
	})

	t.Run("write file created without matches", func(t *testing.T) {
		runScript(t, "/nomatch/w /empty.txt", Options{FS: fs}, "a\n")

		content, err := afero.ReadFile(fs, "/empty.txt")
		require.NoError(t, err)
		assert.Empty(t, content)
	})

	t.Run("write stderr", func(t *testing.T) {
		var stderr bytes.Buffer
		got := runScript(t, "w /dev/stderr", Options{FS: fs, Stderr: &stderr}, "a\n")
		assert.Equal(t, "a\n", got)
		assert.Equal(t, "a\n", stderr.String())
	})

	t.Run("write open failure", func(t *testing.T) {
		script := MustCompile("w /out.txt", CompileOptions{})
		_, err := New(script, Options{FS: afero.NewReadOnlyFs(fs)})

		var ioErr *IOError
		require.True(t, errors.As(err, &ioErr))
		assert.Equal(t, "/out.txt", ioErr.Path)
	})
}

func TestEngine_earlyStopCloses(t *testing.T) {
	fs := afero.NewMemMapFs()
	eng, err := New(MustCompile("w /log.txt", CompileOptions{}), Options{FS: fs})
	require.NoError(t, err)

	out := eng.Run(Input{Reader: strings.NewReader("a\nb\nc\n")})
	require.True(t, out.Scan())

	assert.NoError(t, eng.Close())
	assert.NoError(t, eng.Close(), "second close")

	content, err := afero.ReadFile(fs, "/log.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\n", string(content))
}

func TestListLines(t *testing.T) {
	cases := map[string]struct {
		text  string
		width int
		want  []string
	}{
		"plain":             {"abc", 70, []string{"abc$"}},
		"escapes":           {"\a\b\f\r\t\v", 70, []string{`\a\b\f\r\t\v$`}},
		"octal":             {"\x01\xff", 70, []string{`\001\377$`}},
		"no wrap":           {"abcdef", 1, []string{"abcdef$"}},
		"wrap":              {"abcdef", 4, []string{`abc\`, "def$"}},
		"keep escape whole": {"ab\tc", 4, []string{`ab\`, `\tc$`}},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.want, listLines(tc.text, tc.width))
		})
	}
}
