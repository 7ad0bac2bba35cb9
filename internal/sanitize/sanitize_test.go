package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFontFamilyMidStyle(t *testing.T) {
	in := `<span style="font-family: consolas, terminal, monaco; color: rgba(0, 235, 255, 1)">txt</span>`
	expected := `<span style="color: rgba(0, 235, 255, 1)">txt</span>`
	assert.Equal(t, expected, Clean(in))
}

func TestCleanFontFamilyEndStyle(t *testing.T) {
	in := `<span style="color: rgba(0, 235, 255, 1); font-family: consolas, terminal, monaco">txt</span>`
	expected := `<span style="color: rgba(0, 235, 255, 1);">txt</span>`
	assert.Equal(t, expected, Clean(in))
}

func TestCleanFontWeight(t *testing.T) {
	assert.Equal(t, `<b style="">x</b>`, Clean(`<b style="font-weight: normal">x</b>`))
	assert.Equal(t, `<b style="">x</b>`, Clean(`<b style="font-weight:400">x</b>`))
}

func TestCleanStripsClassAttributes(t *testing.T) {
	in := `<p class="cnM5NDA4MTVmMmRlNzQ1ZjI5YmRmZDcxYjgxYTc5NGYx">text</p>`
	assert.Equal(t, `<p>text</p>`, Clean(in))
}

func TestCleanRemovesNbspOnlyParagraphs(t *testing.T) {
	in := `<p class="cn123" style="text-align: center">&nbsp;</p>`
	assert.Equal(t, ``, Clean(in))
}

func TestCleanClosesVoidTags(t *testing.T) {
	assert.Equal(t,
		`<img src="https://site.com/img.gif" alt="image"/>`,
		Clean(`<img src="https://site.com/img.gif" alt="image">`))
	assert.Equal(t, `a<br/>b<hr/>c`, Clean(`a<br>b<hr>c`))
}

func TestCleanLeavesClosedImgAlone(t *testing.T) {
	in := `<img src="https://site.com/img.gif" alt="image"/>`
	assert.Equal(t, in, Clean(in))
}

func TestCleanStripsOverflowAuto(t *testing.T) {
	assert.Equal(t, `<div style="">x</div>`, Clean(`<div style="overflow: auto">x</div>`))
}

func TestCleanRemovesBoilerplateLines(t *testing.T) {
	in := `<p>Real text.</p><p>Stolen novel; please report.</p>`
	out := Clean(in)
	assert.NotContains(t, out, "Stolen novel")
	assert.Contains(t, out, "Real text.")
}

func TestCleanIsIdempotent(t *testing.T) {
	inputs := []string{
		`<span style="font-family: x; color: red">a</span>`,
		`<p class="abc">&nbsp;</p><img src="x.png"><br><hr>`,
		`<p>Plain text stays plain.</p>`,
		`<div style="overflow: auto; font-weight: normal">x</div>`,
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input: %s", in)
	}
}
