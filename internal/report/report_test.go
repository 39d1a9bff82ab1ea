package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/templan/internal/model"
	"github.com/phobologic/templan/internal/usage"
)

func inv(name model.TemplateName, file, sig string) model.InvocationSite {
	return model.InvocationSite{Template: name, File: file, Signature: sig}
}

func sampleIndex() *usage.Index {
	invs := []model.InvocationSite{
		inv("Welcome", "app/views.py", "user=u"),
		inv("Welcome", "app/mail.py", "user=u, cycle=c"),
		inv("TeamDigest", "app/team.py", "team=t"),
	}
	refs := []model.VariableReference{
		{Template: "Welcome", Expression: "user.name"},
		{Template: "Welcome", Expression: "cycle.title"},
		{Template: "Orphan", Expression: "x"},
	}
	return usage.NewIndex(usage.Build(invs, refs, ""))
}

func TestListing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Listing(&buf, sampleIndex(), ListingOptions{}))

	want := `[TeamDigest]
 inv: app/team.py (team=t)
[Welcome]
 inv: app/mail.py (user=u, cycle=c)
 inv: app/views.py (user=u)
2 templates, 3 invocations
`
	assert.Equal(t, want, buf.String())
}

func TestListingWithRefs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Listing(&buf, sampleIndex(), ListingOptions{Refs: true}))

	out := buf.String()
	assert.Contains(t, out, "[Welcome]\n inv: app/mail.py (user=u, cycle=c)\n inv: app/views.py (user=u)\n var: cycle.title\n var: user.name\n")
	assert.NotContains(t, out, "Orphan")
	assert.True(t, strings.HasSuffix(out, "2 templates, 3 invocations\n"))
}

func TestListingEmptyIndex(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Listing(&buf, usage.NewIndex(nil), ListingOptions{}))
	assert.Equal(t, "0 templates, 0 invocations\n", buf.String())
}

func TestHTMLTableRowspan(t *testing.T) {
	t.Parallel()

	entries := []model.UsageEntry{{
		Template: "Welcome",
		Invocations: []model.InvocationSite{
			inv("Welcome", "a.py", "x=1"),
			inv("Welcome", "b.py", "x=2"),
			inv("Welcome", "c.py", "x=3"),
		},
		References: []string{"user.name", "user.email"},
	}}

	got := HTMLTable(entries)

	assert.True(t, strings.HasPrefix(got, "<table>\n    <tr>\n        <th>Template</th>"))
	assert.True(t, strings.HasSuffix(got, "\n</table>"))
	assert.Equal(t, 2, strings.Count(got, `rowspan="3"`))
	assert.Contains(t, got, `<td rowspan="3">Welcome</td>`)
	assert.Contains(t, got, "<td rowspan=\"3\">user.name<br/>\nuser.email</td>")
	// Header, first invocation row and two continuation rows.
	assert.Equal(t, 4, strings.Count(got, "<tr>"))
	assert.Contains(t, got, "    <tr>\n        <td>b.py</td>\n        <td>x=2</td>\n    </tr>")
	assert.Contains(t, got, "    <tr>\n        <td>c.py</td>\n        <td>x=3</td>\n    </tr>")
}

func TestHTMLTableUnused(t *testing.T) {
	t.Parallel()

	got := HTMLTable([]model.UsageEntry{{Template: "Orphan", References: []string{"x"}}})

	assert.Equal(t, 2, strings.Count(got, "<tr>"))
	assert.Contains(t, got, `<td colspan="2">not called from source</td>`)
	assert.NotContains(t, got, "rowspan")
}

func TestHTMLTableEscapes(t *testing.T) {
	t.Parallel()

	got := HTMLTable([]model.UsageEntry{{
		Template:    "Cmp",
		Invocations: []model.InvocationSite{inv("Cmp", "a.py", "ok=a<b")},
		References:  []string{`a > "b"`},
	}})

	assert.Contains(t, got, "ok=a&lt;b")
	assert.Contains(t, got, "a &gt; &#34;b&#34;")
}

func TestCSV(t *testing.T) {
	t.Parallel()

	entries := []model.UsageEntry{
		{
			Template: "Welcome",
			Invocations: []model.InvocationSite{
				inv("Welcome", "a.py", "user=u, cycle=c"),
				inv("Welcome", "b.py", "user=u"),
			},
		},
		{Template: "Orphan", References: []string{"x"}},
	}

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, entries))
	assert.Equal(t, "Welcome,a.py,\"user=u, cycle=c\"\nWelcome,b.py,user=u\n", buf.String())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tmpl model.TemplateName
		sig  string
		want string
	}{
		{"team prefix wins over signature", "TeamReport", "activity=a, action=b", "team"},
		{"reminder suffix", "DueReminder", "cycle=c", "reminder"},
		{"activity action", "Note", "activity=a, action=x", "activity-action"},
		{"activity", "Note", "activity=a", "activity"},
		{"completeness", "Progress", "completeness=c", "completeness"},
		{"cycle", "Opened", "cycle=c", "cycle"},
		{"cycle member", "Joined", "cycle=c, member=m", "cycle-member"},
		{"cycle member action", "Joined", "cycle=c, member=m, action=a", "cycle-member-action"},
		{"cycle action without member", "Opened", "cycle=c, action=a", "cycle"},
		{"form review", "ReviewForm", "form=f", "form-review"},
		{"form", "Submitted", "form=f", "form"},
		{"activity before cycle", "Mixed", "cycle=c, activity=a", "activity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Classify(tt.tmpl, tt.sig)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnclassified(t *testing.T) {
	t.Parallel()

	_, err := Classify("Mystery", "user=u")
	require.ErrorIs(t, err, ErrUnclassified)
	assert.Contains(t, err.Error(), "Mystery")
}

func manifestEntries() []model.UsageEntry {
	return []model.UsageEntry{
		{Template: "MessageBase", Invocations: []model.InvocationSite{inv("MessageBase", "a.py", "x=1")}},
		{Template: "TeamDigest", Invocations: []model.InvocationSite{inv("TeamDigest", "a.py", "team=t")}},
		{Template: "TestMessage", Invocations: []model.InvocationSite{inv("TestMessage", "a.py", "x=1")}},
		{Template: "Welcome", Invocations: []model.InvocationSite{
			inv("Welcome", "a.py", "cycle=c, member=m"),
			inv("Welcome", "b.py", "user=u"),
		}},
	}
}

func TestManifest(t *testing.T) {
	t.Parallel()

	got, err := Manifest(manifestEntries(), ManifestOptions{
		Titles: map[model.TemplateName]string{"Welcome": "Welcome aboard"},
	})
	require.NoError(t, err)

	want := []model.ManifestEntry{
		{File: "TeamDigest.tmpl", Type: "team", Template: "TeamDigest", Title: "TeamDigest"},
		{File: "Welcome.tmpl", Type: "cycle-member", Template: "Welcome", Title: "Welcome aboard"},
	}
	assert.Equal(t, want, got)
}

func TestManifestUnclassifiedFails(t *testing.T) {
	t.Parallel()

	entries := append(manifestEntries(), model.UsageEntry{
		Template:    "Zed",
		Invocations: []model.InvocationSite{inv("Zed", "a.py", "user=u")},
	})
	got, err := Manifest(entries, ManifestOptions{})
	require.ErrorIs(t, err, ErrUnclassified)
	assert.Nil(t, got)
}

func TestManifestDestExt(t *testing.T) {
	t.Parallel()

	got, err := Manifest(manifestEntries()[1:2], ManifestOptions{DestExt: "tpl"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TeamDigest.tpl", got[0].File)
}

func TestWriteManifestXML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteManifestXML(&buf, []model.ManifestEntry{
		{File: "TeamDigest.tmpl", Type: "team", Template: "TeamDigest", Title: "Team & co"},
	}))

	want := `<?xml version="1.0" encoding="UTF-8"?>
<templates>
  <template file="TeamDigest.tmpl" type="team" id="TeamDigest" title="Team &amp; co"></template>
</templates>
`
	assert.Equal(t, want, buf.String())
}

func TestWriteManifestYAML(t *testing.T) {
	t.Parallel()

	entries := []model.ManifestEntry{
		{File: "TeamDigest.tmpl", Type: "team", Template: "TeamDigest", Title: "TeamDigest"},
		{File: "Welcome.tmpl", Type: "cycle", Template: "Welcome", Title: "Welcome aboard"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteManifestYAML(&buf, entries))
	assert.True(t, strings.HasPrefix(buf.String(), "templates:\n"))

	var doc struct {
		Templates []model.ManifestEntry `yaml:"templates"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, entries, doc.Templates)
}
