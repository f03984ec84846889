package pipeline

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/oceanline/broker/engine/domain"
)

// OutboundData is the parameter bag the outgoing mail template renders
// against (spec.md §4.7/§6: "{ship, cargos, email}").
type OutboundData struct {
	Ship    domain.Ship
	Cargoes []domain.Cargo
	Email   domain.Email
}

// Templates holds the compiled subject/body pair for outbound notification
// mail. The subject is plain text; the body is HTML. Both are loaded from
// external files so template *content* stays outside the core (spec.md §1
// "static templating of outgoing mail bodies" is out of scope; only the
// rendering call itself is in-core per SPEC_FULL §4.7).
type Templates struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// LoadTemplates parses the subject and body template files. Either path may
// be empty, in which case a minimal built-in default is used.
func LoadTemplates(subjectPath, bodyPath string) (*Templates, error) {
	subject := texttemplate.New("subject")
	if subjectPath != "" {
		parsed, err := texttemplate.ParseFiles(subjectPath)
		if err != nil {
			return nil, fmt.Errorf("pipeline: parse subject template %q: %w", subjectPath, err)
		}
		subject = parsed
	} else {
		subject = texttemplate.Must(subject.Parse(defaultSubjectTemplate))
	}

	body := htmltemplate.New("body")
	if bodyPath != "" {
		parsed, err := htmltemplate.ParseFiles(bodyPath)
		if err != nil {
			return nil, fmt.Errorf("pipeline: parse body template %q: %w", bodyPath, err)
		}
		body = parsed
	} else {
		body = htmltemplate.Must(body.Parse(defaultBodyTemplate))
	}

	return &Templates{subject: subject, body: body}, nil
}

const defaultSubjectTemplate = `Cargo matches for {{.Ship.Name}}`

const defaultBodyTemplate = `<p>Vessel <strong>{{.Ship.Name}}</strong> has {{len .Cargoes}} candidate cargo matches:</p>
<ul>
{{range .Cargoes}}<li>{{.Name}} — {{.QuantityMinInt}}-{{.QuantityMaxInt}} mt, commission {{.CommissionFloat}}%</li>
{{end}}</ul>`

// Render executes both templates against data and returns the subject and
// HTML body.
func (t *Templates) Render(data OutboundData) (subject, body string, err error) {
	var subjBuf, bodyBuf bytes.Buffer
	if err := t.subject.Execute(&subjBuf, data); err != nil {
		return "", "", fmt.Errorf("pipeline: render subject: %w", err)
	}
	if err := t.body.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("pipeline: render body: %w", err)
	}
	return subjBuf.String(), bodyBuf.String(), nil
}
