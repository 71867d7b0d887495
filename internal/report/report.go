// Package report renders ticket and statistics PDFs.
package report

import (
	"fmt"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/pqr-service/internal/domain"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 94, Blue: 132}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// StatsFilter echoes the filters a statistics report was built with.
type StatsFilter struct {
	City     string
	GestorID string
	Status   string
}

// Generator renders PDFs. Location controls how timestamps are printed.
type Generator struct {
	loc *time.Location
}

// NewGenerator builds the generator.
func NewGenerator(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc}
}

// Ticket renders a ticket with its follow-ups.
func (g *Generator) Ticket(ticket *domain.Ticket) ([]byte, error) {
	m := maroto.New(g.config("Reporte PQR " + ticket.ID))

	m.AddRows(titleRow("REPORTE DE PQR", ticket.ID))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(
		fieldRow("Paciente", ticket.PatientName),
		fieldRow("Ciudad", ticket.City),
		fieldRow("Teléfono", ticket.Phone),
		fieldRow("Correo", dash(ticket.Email)),
		fieldRow("Medio de contacto", dash(ticket.ContactMethod)),
		fieldRow("Estado", string(ticket.Status)),
		fieldRow("Gestor", dash(ticket.AssignedTo.DisplayName())),
		fieldRow("Ingreso", "$"+formatMoney(ticket.Revenue)),
		fieldRow("Creado", g.stamp(ticket.CreatedAt)),
	)
	m.AddRows(sectionRow("Descripción"))
	m.AddRows(paragraphRow(ticket.Description))

	m.AddRows(sectionRow(fmt.Sprintf("Seguimientos (%d)", len(ticket.FollowUps))))
	if len(ticket.FollowUps) == 0 {
		m.AddRows(paragraphRow("Sin seguimientos registrados."))
	}
	for _, f := range ticket.FollowUps {
		m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.2}))
		m.AddRows(fieldRow("Fecha", g.stamp(f.CreatedAt)))
		m.AddRows(fieldRow("Estado", string(f.Status)))
		m.AddRows(fieldRow("Diagnóstico", f.Diagnosis))
		if f.Protocol != "" {
			m.AddRows(fieldRow("Protocolo", f.Protocol))
		}
		if f.BonusInfo != "" {
			m.AddRows(fieldRow("Bonificación", f.BonusInfo))
		}
		if f.Content != "" {
			m.AddRows(paragraphRow(f.Content))
		}
	}
	if len(ticket.Media) > 0 {
		m.AddRows(sectionRow(fmt.Sprintf("Adjuntos (%d)", len(ticket.Media))))
		for _, media := range ticket.Media {
			m.AddRows(paragraphRow(fmt.Sprintf("%s (%s)", media.FileName, media.MimeType)))
		}
	}

	return generate(m)
}

// Stats renders aggregated statistics.
func (g *Generator) Stats(stats *domain.TicketStats, filter StatsFilter, generatedAt time.Time) ([]byte, error) {
	m := maroto.New(g.config("Estadísticas PQR"))

	m.AddRows(titleRow("ESTADÍSTICAS PQR", g.stamp(generatedAt)))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(
		fieldRow("Ciudad", orAll(filter.City)),
		fieldRow("Gestor", orAll(filter.GestorID)),
		fieldRow("Estado", orAll(filter.Status)),
	)
	m.AddRows(sectionRow("Resumen"))
	m.AddRows(
		fieldRow("Total de casos", fmt.Sprintf("%d", stats.Total)),
		fieldRow("Casos resueltos", fmt.Sprintf("%d", stats.Resolved)),
		fieldRow("Ingresos", "$"+formatMoney(stats.Revenue)),
	)

	m.AddRows(sectionRow("Casos por ciudad"))
	m.AddRows(row.New(7).Add(
		col.New(8).Add(text.New("Ciudad", props.Text{Style: fontstyle.Bold, Size: 9, Top: 1})),
		col.New(4).Add(text.New("Casos", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 1})),
	))
	for _, c := range stats.ByCity {
		m.AddRows(row.New(6).Add(
			col.New(8).Add(text.New(dash(c.City), props.Text{Size: 9, Top: 1})),
			col.New(4).Add(text.New(fmt.Sprintf("%d", c.Count), props.Text{Size: 9, Align: align.Right, Top: 1})),
		))
	}

	return generate(m)
}

func (g *Generator) config(title string) *entity.Config {
	return mconfig.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).WithRightMargin(12).
		WithTopMargin(12).WithBottomMargin(12).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title, true).
		Build()
}

func (g *Generator) stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(g.loc).Format("02/01/2006 15:04")
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("report: generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

func titleRow(title, subtitle string) core.Row {
	return row.New(14).Add(
		col.New(8).Add(text.New(title, props.Text{
			Style: fontstyle.Bold, Size: 14, Color: colorPrimary, Top: 2,
		})),
		col.New(4).Add(text.New(subtitle, props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 3,
		})),
	)
}

func sectionRow(label string) core.Row {
	return row.New(9).Add(col.New(12).Add(text.New(label, props.Text{
		Style: fontstyle.Bold, Size: 10, Color: colorPrimary, Top: 3,
	})))
}

func fieldRow(label, value string) core.Row {
	return row.New(6).Add(
		col.New(4).Add(text.New(label+":", props.Text{Style: fontstyle.Bold, Size: 9, Top: 1})),
		col.New(8).Add(text.New(value, props.Text{Size: 9, Top: 1})),
	)
}

func paragraphRow(body string) core.Row {
	lines := max(1, strings.Count(body, "\n")+1+len(body)/110)
	return row.New(float64(4 + 4*lines)).Add(col.New(12).Add(text.New(body, props.Text{
		Size: 9, Top: 1, Color: colorGray,
	})))
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func orAll(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Todos"
	}
	return s
}

// formatMoney prints an integer amount with dot thousands separators.
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	n := len(s)
	buf := make([]byte, 0, n+n/3+1)
	if neg {
		buf = append(buf, '-')
	}
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
