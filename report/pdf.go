package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/phy"
	"github.com/ardnew/utmisim/session"
)

// SavePDF renders rep into a PDF document at out.
func SavePDF(rep *session.Report, name, out string) error {
	pdf := newPDF(rep, name)
	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

// WritePDF renders rep as a PDF document to w.
func WritePDF(w io.Writer, rep *session.Report, name string) error {
	pdf := newPDF(rep, name)
	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

func newPDF(rep *session.Report, name string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Run Report: "+name, false)
	pdf.SetAuthor("utmisim", false)
	pdf.SetCreator("utmisim", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Run Report: "+name)
	addSummarySection(pdf, rep)
	addPacketSection(pdf, rep.Results)
	addFaultSection(pdf, rep.Results)
	return pdf
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep *session.Report) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Bus Speed", value: rep.Speed.String()},
		{label: "Device Address", value: strconv.Itoa(int(rep.Address))},
		{label: "Packets", value: strconv.Itoa(len(rep.Results))},
		{label: "Faults", value: strconv.Itoa(len(rep.Faults()))},
		{label: "Clock Edges", value: strconv.Itoa(rep.Edges())},
		{label: "Overall", value: passLabel(rep.Passed())},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addPacketSection(pdf *gofpdf.Fpdf, results []*phy.Result) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Packets")
	pdf.Ln(9)

	headers := []string{"#", "Direction", "Kind", "PID", "Bytes", "State", "Edges", "Pass"}
	widths := []float64{10, 32, 32, 20, 14, 30, 18, 14}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for i, res := range results {
		p := res.Packet
		n := len(res.Captured)
		if p.Direction == packet.Tx {
			n = p.Len(packet.FormWire)
		}
		values := []string{
			strconv.Itoa(i),
			p.Direction.String(),
			p.Kind.String(),
			p.PIDName(),
			strconv.Itoa(n),
			res.State.String(),
			strconv.Itoa(res.Edges),
			passLabel(res.Passed()),
		}
		for j, v := range values {
			pdf.CellFormat(widths[j], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func addFaultSection(pdf *gofpdf.Fpdf, results []*phy.Result) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Faults")
	pdf.Ln(9)

	count := 0
	for i, res := range results {
		for _, f := range res.Faults {
			count++
			pdf.SetFont("Helvetica", "B", 10)
			header := fmt.Sprintf("%d. packet %d %s (%s)", count, i, res.Packet.PIDName(), f.Kind)
			pdf.MultiCell(0, 5, header, "", "L", false)

			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, f.Error(), "", "L", false)
			pdf.Ln(2)
		}
	}
	if count == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No faults recorded.", "", "L", false)
	}
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
