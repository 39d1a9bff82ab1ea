package parse

import (
	"strings"
	"testing"

	"github.com/phobologic/templan/internal/lang"
)

func setup(t *testing.T) func(source string, match func(string) bool) []Call {
	t.Helper()
	l := lang.Lookup("python")
	if l == nil {
		t.Fatal("python not registered")
	}
	q, err := l.CallQuery()
	if err != nil {
		t.Fatalf("CallQuery: %v", err)
	}
	return func(source string, match func(string) bool) []Call {
		return ExtractCalls(l.NewParser(), q, []byte(source), "views.py", match)
	}
}

func renderOnly(callee string) bool {
	return strings.HasSuffix(callee, ".render")
}

func TestExtractSingleLineCall(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	calls := extract("message_router.render('Welcome', user=u)\n", renderOnly)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d: %+v", len(calls), calls)
	}
	c := calls[0]
	if c.Callee != "message_router.render" {
		t.Errorf("callee = %q", c.Callee)
	}
	if c.Text != "message_router.render('Welcome', user=u)" {
		t.Errorf("text = %q", c.Text)
	}
	if c.Line != 1 {
		t.Errorf("line = %d, want 1", c.Line)
	}
	if c.File != "views.py" {
		t.Errorf("file = %q", c.File)
	}
}

func TestExtractMultiLineCall(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	source := `def notify(u):
    body = message_router.render(
        'CycleStart',
        cycle=u.cycle,
    )
    return body
`
	calls := extract(source, renderOnly)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d: %+v", len(calls), calls)
	}
	if calls[0].Text != "message_router.render('CycleStart', cycle=u.cycle)" {
		t.Errorf("text = %q", calls[0].Text)
	}
	if calls[0].Line != 2 {
		t.Errorf("line = %d, want 2", calls[0].Line)
	}
}

func TestExtractFiltersCallee(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	calls := extract("x = foo()\ny = bar.baz()\nz = r.render('A', b)\n", renderOnly)
	if len(calls) != 1 || calls[0].Callee != "r.render" {
		t.Fatalf("expected only r.render, got %+v", calls)
	}

	all := extract("x = foo()\ny = bar.baz()\n", nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 calls without matcher, got %d", len(all))
	}
}

func TestExtractEmpty(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	if calls := extract("", nil); len(calls) != 0 {
		t.Errorf("expected 0 calls for empty source, got %d", len(calls))
	}
}

func TestExtractCallText(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	tests := []struct {
		name, in, want string
	}{
		{"single line", "r.render(a)\n", "r.render(a)"},
		{"multi line", "r.render(\n  a,\n  b\n)\n", "r.render(a, b)"},
		{"trailing comma", "r.render(\n  a,\n  b,\n)\n", "r.render(a, b)"},
		{"padded brackets", "r.render( g( x ) )\n", "r.render(g(x))"},
		{"string kept verbatim", `r.render('A', subject=" ( draft )")` + "\n", `r.render('A', subject=" ( draft )")`},
		{"string with comma before bracket", `r.render('A', sep=",)")` + "\n", `r.render('A', sep=",)")`},
		{"comment dropped", "r.render(\n  'A',  # greeting\n  u,\n)\n", "r.render('A', u)"},
		{"operator spacing kept", "r.render('A', n=a  +  b)\n", "r.render('A', n=a + b)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := extract(tt.in, renderOnly)
			if len(calls) != 1 {
				t.Fatalf("expected 1 call, got %d: %+v", len(calls), calls)
			}
			if calls[0].Text != tt.want {
				t.Errorf("text = %q, want %q", calls[0].Text, tt.want)
			}
		})
	}
}
