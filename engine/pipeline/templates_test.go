package pipeline

import (
	"strings"
	"testing"

	"github.com/oceanline/broker/engine/domain"
)

func intp(v int) *int { return &v }

func TestDefaultTemplatesRender(t *testing.T) {
	tmpl, err := LoadTemplates("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := OutboundData{
		Ship: domain.Ship{Name: "MV Example"},
		Cargoes: []domain.Cargo{
			{Name: "wheat", QuantityMinInt: intp(9000), QuantityMaxInt: intp(11000), CommissionFloat: 2.5},
		},
	}
	subject, body, err := tmpl.Render(data)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !strings.Contains(subject, "MV Example") {
		t.Fatalf("expected subject to mention ship name, got %q", subject)
	}
	if !strings.Contains(body, "wheat") {
		t.Fatalf("expected body to mention cargo name, got %q", body)
	}
}
