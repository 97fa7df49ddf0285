package notifications

import (
	"fmt"
	"strings"
)

// RenderText reemplaza marcadores {clave} por los valores de vars.
// Marcadores sin valor quedan tal cual (visibles, no silenciados).
func RenderText(tpl string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(tpl, "{") {
		return tpl
	}

	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return out
}

// Render aplica la plantilla y devuelve título y mensaje finales.
func (t Template) Render(vars map[string]any) (titulo, mensaje string) {
	return RenderText(t.TituloTemplate, vars), RenderText(t.MensajeTemplate, vars)
}
