package script

import (
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// DetailedMapPrinter can describe its complete block layout as json
type DetailedMapPrinter interface {
	PrintDetailedMap(writer *jwriter.Writer)
}

// WriteHeaders writes the header values on a single line, separated by spaces
func WriteHeaders(writer io.Writer, headers []int) error {
	line := make([]byte, 0, len(headers)*5+1)
	for i, header := range headers {
		if i > 0 {
			line = append(line, ' ')
		}
		line = strconv.AppendInt(line, int64(header), 10)
	}
	line = append(line, '\n')

	_, err := writer.Write(line)
	return errors.Wrap(err, "failed to write block headers")
}

// WriteJSON writes the printer's detailed map as a single line of json
func WriteJSON(writer io.Writer, printer DetailedMapPrinter) error {
	jsonWriter := jwriter.NewWriter()
	printer.PrintDetailedMap(&jsonWriter)
	if err := jsonWriter.Error(); err != nil {
		return errors.Wrap(err, "failed to build detailed map")
	}

	data := append(jsonWriter.Bytes(), '\n')
	_, err := writer.Write(data)
	return errors.Wrap(err, "failed to write detailed map")
}
