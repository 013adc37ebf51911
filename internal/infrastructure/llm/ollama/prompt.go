package ollama

import (
	"fmt"
	"strings"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

func buildAnswerPrompt(question string, contextBlocks []string, turns []domain.Turn) string {
	var b strings.Builder
	b.WriteString(`Eres el asistente virtual de la parroquia. Responde en el idioma
de la pregunta, breve y cercano, solo con la información del contexto.
Si el contexto no basta, dilo y sugiere contactar con el despacho parroquial.

Contexto:
`)
	for i, block := range contextBlocks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, block)
	}

	if len(turns) > 0 {
		b.WriteString("\nConversación reciente:\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}

	fmt.Fprintf(&b, "\nPregunta:\n%s\n", question)
	return b.String()
}

func buildExpansionPrompt(query string, maxVariants int) string {
	return fmt.Sprintf(`Reformula esta consulta en hasta %d variantes para búsqueda
semántica, una por línea, sin numerar y sin repetir la original. Conserva
intactos los términos religiosos y los nombres propios.

Consulta:
%s
`, maxVariants, query)
}
