// Package export writes composites, canonical links and mappings as CSV
// tables to a local directory or an S3 bucket.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// listSeparator joins multi-valued cells.
const listSeparator = ";"

var (
	compositeColumns = []string{
		"uid", "schema", "name", "aliases", "country", "addresses", "origins",
		"registration_numbers", "external_ids", "tasked", "weight", "uid_parts", "data",
	}
	linkColumns    = []string{"source", "target", "schema", "origins", "data"}
	mappingColumns = []string{"left_uid", "right_uid", "judgement", "decided", "generated", "score", "decided_by"}
)

// CompositesCSV renders composites, one row each.
func CompositesCSV(composites []models.Composite) ([]byte, error) {
	rows := make([][]string, 0, len(composites))
	for i := range composites {
		c := &composites[i]
		data, err := jsonCell(c.Data)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []string{
			c.UID,
			string(c.Schema),
			c.Name,
			strings.Join(c.Aliases, listSeparator),
			c.Country,
			strings.Join(c.Addresses, listSeparator),
			strings.Join(c.Origins, listSeparator),
			strings.Join(c.RegistrationNumbers, listSeparator),
			strings.Join(c.ExternalIDs, listSeparator),
			strconv.FormatBool(c.Tasked),
			strconv.Itoa(c.Weight),
			strings.Join(c.UIDParts, listSeparator),
			data,
		})
	}
	return render(compositeColumns, rows)
}

// LinksCSV renders canonical links.
func LinksCSV(links []models.CompositeLink) ([]byte, error) {
	rows := make([][]string, 0, len(links))
	for i := range links {
		l := &links[i]
		data, err := jsonCell(l.Data)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []string{l.Source, l.Target, l.Schema, strings.Join(l.Origins, listSeparator), data})
	}
	return render(linkColumns, rows)
}

// MappingsCSV renders stored mappings. A missing judgement or score is an
// empty cell.
func MappingsCSV(mappings []models.Mapping) ([]byte, error) {
	rows := make([][]string, 0, len(mappings))
	for i := range mappings {
		m := &mappings[i]
		judgement := ""
		if m.Judgement != nil {
			judgement = strconv.FormatBool(*m.Judgement)
		}
		score := ""
		if m.Score != nil {
			score = strconv.FormatFloat(*m.Score, 'f', -1, 64)
		}
		decidedBy := ""
		if m.DecidedBy != nil {
			decidedBy = *m.DecidedBy
		}
		rows = append(rows, []string{
			m.LeftUID,
			m.RightUID,
			judgement,
			strconv.FormatBool(m.Decided),
			strconv.FormatBool(m.Generated),
			score,
			decidedBy,
		})
	}
	return render(mappingColumns, rows)
}

func render(header []string, rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonCell(data models.Attributes) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
