package sed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(script *Script) []Kind {
	var out []Kind
	for _, cmd := range script.Commands {
		out = append(out, cmd.Kind)
	}
	return out
}

func TestCompile_kinds(t *testing.T) {
	cases := map[string]struct {
		source string
		want   []Kind
	}{
		"empty":               {"", nil},
		"semicolons":          {"p;d", []Kind{KindPrint, KindDelete}},
		"newlines":            {"p\nd\n", []Kind{KindPrint, KindDelete}},
		"stray separators":    {";; p ;", []Kind{KindPrint}},
		"comments keep slots": {"# c\n\np", []Kind{KindComment, KindComment, KindPrint}},
		"trailing comment":    {"p # print", []Kind{KindPrint, KindComment}},
		"block":               {"/x/{p;d}", []Kind{KindBlockStart, KindPrint, KindDelete, KindBlockEnd}},
		"every letter": {
			"=;D;F;G;H;N;P;g;h;l;n;x;z;q;Q",
			[]Kind{
				KindLineNumber, KindDeleteFirstLine, KindFilename, KindGetAppend, KindHoldAppend,
				KindNextAppend, KindPrintFirstLine, KindGet, KindHold, KindList, KindNext,
				KindExchange, KindZap, KindQuit, KindQuitSilent,
			},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			script, err := Compile(tc.source, CompileOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, kinds(script))
		})
	}
}

func TestCompile_deterministic(t *testing.T) {
	source := ":top\n/a/,/b/{s/x/y/g;t top}\n$!N\ny/abc/xyz/"

	first := MustCompile(source, CompileOptions{})
	second := MustCompile(source, CompileOptions{})

	assert.Equal(t, first.String(), second.String())
	assert.Equal(t, kinds(first), kinds(second))
}

func TestCompile_labels(t *testing.T) {
	script := MustCompile("# header\n:start\np\n:end\nb start", CompileOptions{})

	assert.Equal(t, map[string]int{"start": 1, "end": 3}, script.Labels())

	// Callers can't modify the table.
	script.Labels()["start"] = 99
	assert.Equal(t, 1, script.Labels()["start"])
}

func TestCompile_blocks(t *testing.T) {
	script := MustCompile("1{\n/x/{\np\n}\n}", CompileOptions{})

	outer, inner := script.Commands[0], script.Commands[1]
	require.Equal(t, KindBlockStart, outer.Kind)
	require.Equal(t, KindBlockStart, inner.Kind)
	assert.Equal(t, KindBlockEnd, script.Commands[outer.BlockEnd].Kind)
	assert.Equal(t, KindBlockEnd, script.Commands[inner.BlockEnd].Kind)
	assert.Greater(t, outer.BlockEnd, inner.BlockEnd)
}

func TestCompile_addresses(t *testing.T) {
	cases := map[string]struct {
		source string
		addr1  string
		addr2  string
		negate bool
	}{
		"none":          {"p", "", "", false},
		"line":          {"12p", "12", "", false},
		"last":          {"$p", "$", "", false},
		"step":          {"2~3p", "2~3", "", false},
		"regexp":        {"/a b/p", "/a b/", "", false},
		"regexp flags":  {"/a/IMp", "/a/IM", "", false},
		"custom delim":  {`\%a/b%p`, `/a\/b/`, "", false},
		"escaped delim": {`/a\/b/p`, `/a\/b/`, "", false},
		"range":         {"1,$p", "1", "$", false},
		"spaced range":  {"1 , /x/ ! p", "1", "/x/", true},
		"negated":       {"3!p", "3", "", true},
		"line zero":     {"0,/x/p", "0", "/x/", false},
		"relative":      {"3,+2p", "3", "+2", false},
		"multiple":      {"3,~4p", "3", "~4", false},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			script, err := Compile(tc.source, CompileOptions{})
			require.NoError(t, err)
			require.Len(t, script.Commands, 1)
			cmd := script.Commands[0]

			addrString := func(a *Address) string {
				if a == nil {
					return ""
				}
				return a.String()
			}
			assert.Equal(t, tc.addr1, addrString(cmd.Addr1), "addr1")
			assert.Equal(t, tc.addr2, addrString(cmd.Addr2), "addr2")
			assert.Equal(t, tc.negate, cmd.Negate, "negate")
		})
	}
}

func TestCompile_substitute(t *testing.T) {
	cases := map[string]struct {
		source string
		want   Substitution
	}{
		"plain": {
			"s/a/b/",
			Substitution{Pattern: "a", Replacement: "b", template: "b"},
		},
		"all flags": {
			"s/a/b/3gpIw out.txt",
			Substitution{Pattern: "a", Replacement: "b", Count: 3, Global: true, Print: true, Flags: "I", WriteFile: "out.txt", template: "b"},
		},
		"other delimiter": {
			"s,a/b,c\\,d,",
			Substitution{Pattern: "a/b", Replacement: "c,d", template: "c,d"},
		},
		"references": {
			`s/\(x\)/[&\1\n\t\&]/`,
			Substitution{Pattern: `\(x\)`, Replacement: `[&\1\n\t\&]`, template: "[${0}${1}\n\t&]"},
		},
		"host references": {
			"s/(?P<w>x)/$1${w}\\$/",
			Substitution{Pattern: "(?P<w>x)", Replacement: "$1${w}\\$", template: "$1${w}$$"},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			script, err := Compile(tc.source, CompileOptions{ExtendedRegexp: tn == "host references"})
			require.NoError(t, err)
			got := *script.Commands[0].Subst
			require.NotNil(t, got.Regexp)
			got.Regexp = nil
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompile_text(t *testing.T) {
	cases := map[string]struct {
		source string
		want   string
	}{
		"one line":          {"a hello world", "hello world"},
		"classic":           {"a\\\nhello", "hello"},
		"classic same line": {"a\\hello", "hello"},
		"continued":         {"i\\\none\\\ntwo", "one\ntwo"},
		"leading space":     {"c   text", "text"},
		"escaped backslash": {`a a\\b`, `a\b`},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			script, err := Compile(tc.source, CompileOptions{})
			require.NoError(t, err)
			require.Len(t, script.Commands, 1)
			assert.Equal(t, tc.want, script.Commands[0].Text)
		})
	}
}

func TestCompile_arguments(t *testing.T) {
	script := MustCompile("q5\nl 20\nQ\nr in.txt\nw out.txt\ny/a\\nb/xyz/\nb end ; :end", CompileOptions{})
	cmds := script.Commands

	assert.Equal(t, 5, cmds[0].Int)
	assert.True(t, cmds[0].HasInt)
	assert.Equal(t, 20, cmds[1].Int)
	assert.False(t, cmds[2].HasInt)
	assert.Equal(t, "in.txt", cmds[3].Filename)
	assert.Equal(t, "out.txt", cmds[4].Filename)
	assert.Equal(t, []rune("a\nb"), cmds[5].Translit.From)
	assert.Equal(t, []rune("xyz"), cmds[5].Translit.To)
	assert.Equal(t, "end", cmds[6].Label)
	assert.Equal(t, "end", cmds[7].Label)
}

func TestCompile_errors(t *testing.T) {
	cases := map[string]struct {
		source  string
		opts    CompileOptions
		line    int
		message string
	}{
		"unknown command":      {source: "k", line: 1, message: "unknown command: `k'"},
		"missing command":      {source: "1", line: 1, message: "missing command"},
		"unterminated s":       {source: "s/a/b", line: 1, message: "unterminated `s' command"},
		"s across lines":       {source: "s/a\n/b/", line: 1, message: "unterminated `s' command"},
		"unknown s flag":       {source: "s/a/b/x", line: 1, message: "unknown option to `s'"},
		"repeated g":           {source: "s/a/b/gg", line: 1, message: "multiple `g' options to `s' command"},
		"repeated p":           {source: "s/a/b/pp", line: 1, message: "multiple `p' options to `s' command"},
		"repeated count":       {source: "s/a/b/2g3", line: 1, message: "multiple number options to `s' command"},
		"zero count":           {source: "s/a/b/0", line: 1, message: "number option to `s' command may not be zero"},
		"empty regexp":         {source: "s//x/", line: 1, message: "no previous regular expression"},
		"unterminated y":       {source: "y/abc/xyz", line: 1, message: "unterminated `y' command"},
		"uneven y":             {source: "y/ab/c/", line: 1, message: "strings for `y' command are different lengths"},
		"line zero":            {source: "0p", line: 1, message: "invalid usage of line address 0"},
		"line zero to line":    {source: "0,5p", line: 1, message: "invalid usage of line address 0"},
		"range to line zero":   {source: "1,0p", line: 1, message: "invalid usage of line address 0"},
		"relative no number":   {source: "1,+p", line: 1, message: "expected number after `+'"},
		"multiple no number":   {source: "1,~p", line: 1, message: "expected number after `~'"},
		"unterminated address": {source: "/abc", line: 1, message: "unterminated address regex"},
		"dangling comma":       {source: "1,", line: 1, message: "unexpected `,'"},
		"double negation":      {source: "1!!p", line: 1, message: "multiple `!'s"},
		"trailing garbage":     {source: "pq", line: 1, message: "extra characters after command"},
		"label addresses":      {source: "1:a", line: 1, message: ": doesn't want any addresses"},
		"brace addresses":      {source: "{\n1}", line: 2, message: "} doesn't want any addresses"},
		"empty label":          {source: ":", line: 1, message: "\":\" lacks a label"},
		"duplicate label":      {source: ":a\np\n:a", line: 3, message: "duplicate label `a'"},
		"quit range":           {source: "1,2q", line: 1, message: "command only uses one address"},
		"unmatched open":       {source: "p\n{p", line: 2, message: "unmatched `{'"},
		"unmatched close":      {source: "p\n}", line: 2, message: "unexpected `}'"},
		"missing text":         {source: "a", line: 1, message: "expected \\ after `a', `c' or `i'"},
		"missing filename":     {source: "w", line: 1, message: "missing filename in r/R/w/W commands"},
		"error line":           {source: "p\n\n# ok\nk", line: 4, message: "unknown command: `k'"},
		"sandbox write":        {source: "w out", opts: CompileOptions{Sandbox: true}, line: 1, message: "e/r/w commands disabled in sandbox mode"},
		"sandbox read":         {source: "r in", opts: CompileOptions{Sandbox: true}, line: 1, message: "e/r/w commands disabled in sandbox mode"},
		"sandbox s///w":        {source: "s/a/b/w out", opts: CompileOptions{Sandbox: true}, line: 1, message: "e/r/w commands disabled in sandbox mode"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			_, err := Compile(tc.source, tc.opts)

			var syntaxErr *ScriptSyntaxError
			require.True(t, errors.As(err, &syntaxErr), "got %v", err)
			assert.Equal(t, tc.line, syntaxErr.Line)
			assert.Equal(t, tc.message, syntaxErr.Reason)
		})
	}
}

func TestCompile_undefinedLabel(t *testing.T) {
	_, err := Compile("p\nt nowhere", CompileOptions{})

	var labelErr *UndefinedLabelError
	require.True(t, errors.As(err, &labelErr))
	assert.Equal(t, "nowhere", labelErr.Label)
	assert.Equal(t, 2, labelErr.Line)
	assert.EqualError(t, err, "line 2: can't find label for jump to `nowhere'")
}

func TestCompile_regexError(t *testing.T) {
	_, err := Compile(`/a\(b/p`, CompileOptions{})

	var reErr *RegexError
	require.True(t, errors.As(err, &reErr))
	assert.Equal(t, `a\(b`, reErr.Pattern)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestMustCompile(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile("k", CompileOptions{})
	})
	assert.NotPanics(t, func() {
		MustCompile("p", CompileOptions{})
	})
}

func TestScript_String(t *testing.T) {
	source := "# comment\n/x/I,$!{\ns/a\\/b/c/gp\n}\nl 5\nb end\n:end\ny/ab/cd/\na\\\none\\\ntwo\n2q3"
	want := `/x/I,$!{
  s/a\/b/c/gp
}
l5
b end
:end
y/ab/cd/
a\
one\
two
2q3
`

	script := MustCompile(source, CompileOptions{})
	assert.Equal(t, want, script.String())

	// The canonical form compiles to the same program.
	again := MustCompile(script.String(), CompileOptions{})
	assert.Equal(t, want, again.String())
}
