package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/fit-coach/feedback"
)

var timelineHeader = []string{
	"ts_utc_iso", "elapsed_s", "rule", "verdict", "feedback_text", "distance_m",
	"power_w_30s", "hr_bpm_30s", "hr_bpm_60s", "hr_bpm_change_60s",
	"pace_min_per_km_30s", "pace_min_per_km_60s", "pace_change_60s",
	"cadence_spm_30s", "stride_m", "grade_pct_10s", "gap_min_per_km_60s", "elevation_gain_m",
}

type timelineParquetRow struct {
	TSUTCISO       string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS       float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	Rule           string  `parquet:"name=rule, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Verdict        string  `parquet:"name=verdict, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	FeedbackText   string  `parquet:"name=feedback_text, type=BYTE_ARRAY, convertedtype=UTF8"`
	DistanceM      float64 `parquet:"name=distance_m, type=DOUBLE"`
	PowerW30s      float64 `parquet:"name=power_w_30s, type=DOUBLE"`
	HRBPM30s       float64 `parquet:"name=hr_bpm_30s, type=DOUBLE"`
	HRBPM60s       float64 `parquet:"name=hr_bpm_60s, type=DOUBLE"`
	HRBPMChange60s float64 `parquet:"name=hr_bpm_change_60s, type=DOUBLE"`
	Pace30s        float64 `parquet:"name=pace_min_per_km_30s, type=DOUBLE"`
	Pace60s        float64 `parquet:"name=pace_min_per_km_60s, type=DOUBLE"`
	PaceChange60s  float64 `parquet:"name=pace_change_60s, type=DOUBLE"`
	CadenceSPM30s  float64 `parquet:"name=cadence_spm_30s, type=DOUBLE"`
	StrideM        float64 `parquet:"name=stride_m, type=DOUBLE"`
	GradePct10s    float64 `parquet:"name=grade_pct_10s, type=DOUBLE"`
	GAP60s         float64 `parquet:"name=gap_min_per_km_60s, type=DOUBLE"`
	ElevGainM      float64 `parquet:"name=elevation_gain_m, type=DOUBLE"`
}

func toParquetRow(r TimelineRow) timelineParquetRow {
	return timelineParquetRow{
		TSUTCISO:       r.TSUTCISO,
		ElapsedS:       r.ElapsedS,
		Rule:           r.Rule,
		Verdict:        r.Verdict,
		FeedbackText:   r.FeedbackText,
		DistanceM:      r.DistanceM,
		PowerW30s:      r.PowerW30s,
		HRBPM30s:       r.HRBPM30s,
		HRBPM60s:       r.HRBPM60s,
		HRBPMChange60s: r.HRBPMChange60s,
		Pace30s:        r.Pace30s,
		Pace60s:        r.Pace60s,
		PaceChange60s:  r.PaceChange60s,
		CadenceSPM30s:  r.CadenceSPM30s,
		StrideM:        r.StrideM,
		GradePct10s:    r.GradePct10s,
		GAP60s:         r.GAP60s,
		ElevGainM:      r.ElevGainM,
	}
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory %q is not empty (use --overwrite)", path)
	}
	return nil
}

func formatExtension(format string) string {
	if format == "csv" {
		return "csv"
	}
	return "parquet"
}

func feedbackFileName(compress bool) string {
	if compress {
		return "feedback.jsonl.gz"
	}
	return "feedback.jsonl"
}

// createFile opens path and hands it to write, joining the write and close errors.
func createFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()
	return write(f)
}

func writeJSON(path string, v any) error {
	return createFile(path, func(w io.Writer) error {
		return encodeJSON(w, v)
	})
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTimelineCSV(w io.Writer, rows []TimelineRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(timelineHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.TSUTCISO,
			formatFloat(r.ElapsedS),
			r.Rule,
			r.Verdict,
			r.FeedbackText,
			formatFloat(r.DistanceM),
			formatFloat(r.PowerW30s),
			formatFloat(r.HRBPM30s),
			formatFloat(r.HRBPM60s),
			formatFloat(r.HRBPMChange60s),
			formatFloat(r.Pace30s),
			formatFloat(r.Pace60s),
			formatFloat(r.PaceChange60s),
			formatFloat(r.CadenceSPM30s),
			formatFloat(r.StrideM),
			formatFloat(r.GradePct10s),
			formatFloat(r.GAP60s),
			formatFloat(r.ElevGainM),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTimelineParquet(path string, rows []TimelineRow) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := writer.NewParquetWriter(fw, new(timelineParquetRow), 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		if err := pw.Write(toParquetRow(r)); err != nil {
			return multierror.Append(err, pw.WriteStop(), fw.Close()).ErrorOrNil()
		}
	}
	if err := pw.WriteStop(); err != nil {
		return multierror.Append(err, fw.Close()).ErrorOrNil()
	}
	return fw.Close()
}

// writeFeedbackJSONL writes one feedback entry per line, gzip-compressed when compress
// is set.
func writeFeedbackJSONL(w io.Writer, entries []feedback.Feedback, compress bool) error {
	bw := bufio.NewWriter(w)
	var out io.Writer = bw
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(bw)
		out = zw
	}

	enc := json.NewEncoder(out)
	for _, fb := range entries {
		if err := enc.Encode(fb); err != nil {
			return err
		}
	}
	var result *multierror.Error
	if zw != nil {
		result = multierror.Append(result, zw.Close())
	}
	result = multierror.Append(result, bw.Flush())
	return result.ErrorOrNil()
}

func marshalFeedbackJSONL(entries []feedback.Feedback, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFeedbackJSONL(&buf, entries, compress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
