package pdf

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// CertificateData describes a recorded regulation acceptance.
type CertificateData struct {
	BrandName         string
	CertificateID     string
	StudentID         string
	StudentName       string
	ResidenceID       string
	RegulationVersion string
	RegulationFileRef string
	AcceptedAt        time.Time
	ClientIP          string
}

func (p *PDFProvider) GenerateCertificate(ctx context.Context, data CertificateData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(8, "Regulation acceptance certificate", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.BrandName, props.Text{
			Size:  12,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(12).Add(
			text.New("Certificate: "+data.CertificateID, props.Text{Size: 9}),
			text.New("Issued for residence "+data.ResidenceID, props.Text{Size: 9, Top: 5}),
		),
	)

	student := data.StudentID
	if data.StudentName != "" {
		student = data.StudentName + " (" + data.StudentID + ")"
	}

	rows := [][2]string{
		{"Student", student},
		{"Regulation version", data.RegulationVersion},
		{"Document", data.RegulationFileRef},
		{"Accepted at", data.AcceptedAt.UTC().Format(time.RFC1123)},
	}
	if data.ClientIP != "" {
		rows = append(rows, [2]string{"Accepted from", data.ClientIP})
	}
	for _, row := range rows {
		m.AddRow(10,
			text.NewCol(4, row[0], props.Text{Style: fontstyle.Bold, Size: 10}),
			text.NewCol(8, row[1], props.Text{Size: 10}),
		)
	}

	m.AddRow(25,
		text.NewCol(12, "The student named above accepted this version of the residence regulations. "+
			"A later version must be accepted separately.", props.Text{Size: 9, Top: 10}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
