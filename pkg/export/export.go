// Package export renders the decision log for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/Chewie69006/beem-ai/core/engine/logging"
)

// WriteJSON writes the decision history to w in JSON format.
func WriteJSON(w io.Writer, records []logging.Record) error {
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes the decision history to w in CSV format.
func WriteCSV(w io.Writer, records []logging.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "phase", "target_soc", "charge_power_w", "reasoning"}); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Timestamp.Format(time.RFC3339),
			r.Phase,
			strconv.FormatFloat(r.TargetSoC, 'f', -1, 64),
			strconv.Itoa(r.ChargePowerW),
			r.Reasoning,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
