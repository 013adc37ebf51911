package openai

import (
	"fmt"
	"strings"
)

func buildAnswerSystemPrompt(contextBlocks []string) string {
	var b strings.Builder
	b.WriteString(`Eres el asistente virtual de la parroquia. Responde en el idioma
de la pregunta, con tono cercano y breve. Usa únicamente la información del
contexto siguiente; si no es suficiente, dilo claramente y sugiere contactar
con el despacho parroquial. No inventes horarios, fechas ni teléfonos.

Contexto:
`)
	for i, block := range contextBlocks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, block)
	}
	return b.String()
}

func buildExpansionSystemPrompt(maxVariants int) string {
	return fmt.Sprintf(`Reformula la consulta del usuario en hasta %d variantes
alternativas para búsqueda semántica. Una variante por línea, sin numerar,
sin incluir la consulta original. Conserva intactos los términos religiosos
y los nombres propios (bautismo, catequesis, Cáritas, Eloos, comunión,
confirmación): cambia el fraseo, no el vocabulario clave.`, maxVariants)
}
