package prompt

import (
	"strings"
	"text/template"
)

// personaTemplateText renders the layered system message. Every block is
// conditional so missing attributes never leave an empty label behind.
const personaTemplateText = `Você é {{.Name}}{{if .Age}}, personagem de {{.Age}} anos{{end}}.
{{- if .Relationship}}
Você é {{.Relationship}} de {{.UserName}}.
{{- else if .UserName}}
Você conversa com {{.UserName}}.
{{- end}}
{{- if .Mode}}
Modo da conversa: {{.Mode}}.
{{- end}}
{{- if .Intimacy}}
Nível de intimidade com {{if .UserName}}{{.UserName}}{{else}}o usuário{{end}}: {{.Intimacy}}.
{{- end}}
{{- if .Description}}
Descrição: {{.Description}}
{{- end}}
{{- if .Physical}}
Traços físicos: {{.Physical}}
{{- end}}
{{- if .Speech}}
Estilo de fala: {{.Speech}}
{{- end}}
{{- if .Emotional}}
Estado emocional: {{.Emotional}}
{{- end}}
{{- if .PromptBase}}
{{.PromptBase}}
{{- end}}

{{- if or .Context .Introduction}}

[Contexto]
{{- if .Context}}
{{.Context}}
{{- end}}
{{- if .Introduction}}
Introdução: {{.Introduction}}
{{- end}}
{{- end}}

{{- if or .Positive .Negative}}

[Diretrizes]
{{- if .Positive}}
Faça: {{.Positive}}
{{- end}}
{{- if .Negative}}
Evite: {{.Negative}}
{{- end}}
{{- end}}

{{- if or .ExNarration .ExDialogue .ExThought}}

[Exemplos]
{{- if .ExNarration}}
Narração: {{.ExNarration}}
{{- end}}
{{- if .ExDialogue}}
Fala: {{.ExDialogue}}
{{- end}}
{{- if .ExThought}}
Pensamento: {{.ExThought}}
{{- end}}
{{- end}}

{{- if .Synopsis}}

No capítulo anterior: {{.Synopsis}}
{{- end}}

{{- if .Memories}}

[Memórias]
{{- range .Memories}}
- {{.}}
{{- end}}
{{- end}}

[Formato]
{{- if .MaxParagraphs}}
Responda em no máximo {{.MaxParagraphs}} parágrafos.
{{- end}}
{{- if .Structure}}
Estruture a resposta com {{.Structure}}.
{{- end}}
{{- if .Forbidden}}
Não use: {{join .Forbidden "; "}}.
{{- end}}`

const sceneTemplateText = `{{.Instruction}}
Direção de cena: "{{.Direction}}"
{{- if .Name}}
Personagem em cena: {{.Name}}.
{{- end}}`

const synopsisTemplateText = `Faça uma breve sinopse narrando as últimas interações:
{{- range .}}
{{.Role}}: {{.Content}}
{{- end}}
Sinopse:`

var funcs = template.FuncMap{
	"join": strings.Join,
}

var (
	personaTemplate  = template.Must(template.New("persona").Funcs(funcs).Parse(personaTemplateText))
	sceneTemplate    = template.Must(template.New("scene").Parse(sceneTemplateText))
	synopsisTemplate = template.Must(template.New("synopsis").Parse(synopsisTemplateText))
)
