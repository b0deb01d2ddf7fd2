package coach

import (
	"strings"
	"text/template"
)

// Personas sent as the system message for each call site.
const (
	weakestPointPersona  = "You are a precise language tutor."
	practicePersona      = "You create targeted practice modules for language learners."
	pronunciationPersona = "You provide cautious, practical pronunciation coaching."
)

const weakestPointText = `
You are analyzing learner language.

Detected language: {{.DetectedLanguage}}
Target language: {{.TargetLanguage}}
External grammar tool summary: {{.GrammarSummary}}
Native language: {{.NativeLanguage}}

Text:
{{.Text}}
All text about explanations should be in {{.NativeLanguage}}, all examples should be in {{.TargetLanguage}} (with {{.NativeLanguage}} translation for clarity)
Return exactly this format:
Weakest: <one short phrase like "verb tense consistency" or "article usage">
Why: <2-4 sentences>
Fixes:
- <actionable fix 1>
- <actionable fix 2>
- <actionable fix 3>
`

const practiceModuleText = `
Create a compact practice module for a language learner.

Detected language: {{.DetectedLanguage}}
Target language: {{.TargetLanguage}}
Weakest point: {{.WeakestPoint}}
Native language: {{.NativeLanguage}}

Base it on this transcript:
{{.Text}}
All text about explanations should be in {{.NativeLanguage}}, all examples should be in {{.TargetLanguage}} (with {{.NativeLanguage}} translation for clarity)

Return in this structure (plain text):
1) Micro-lesson (max 6 lines)
2) Drills:
   - 5 corrections (with answers)
   - 5 fill-in-the-blank (with answers)
   - 3 rewrites (include sample answers)
3) 60-second speaking prompt targeting the weakness
Keep it short and extremely practical.
`

// pronunciationText renders the sound-alike block only when candidates exist.
const pronunciationText = `
You are a pronunciation coach.

Important:
- You are NOT hearing audio. You only see a transcript and an approximate Latin-based pronunciation hint.
- Mark everything as probabilistic.
- Keep it short and actionable.
- End with: Experimental pronunciation feedback: yes

Target language: {{.TargetLanguage}}

Transcript:
{{.Text}}

Latin-ish pronunciation hint (approximate):
{{.LatinHint}}
{{- if .SoundAlikes}}

Sound-alike words in the transcript (minimal-pair candidates):
{{- range .SoundAlikes}}
- {{join . ", "}}
{{- end}}
{{- end}}

Return:
- 3-6 likely pronunciation pitfalls (bullets)
- 2 short drills (minimal-pair style if possible)
- Experimental pronunciation feedback: yes
`

var (
	weakestPointTmpl  = template.Must(template.New("weakest").Parse(weakestPointText))
	practiceTmpl      = template.Must(template.New("practice").Parse(practiceModuleText))
	pronunciationTmpl = template.Must(template.New("pronunciation").
				Funcs(template.FuncMap{"join": strings.Join}).
				Parse(pronunciationText))
)

// render executes tmpl with data and returns the filled prompt.
func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
