//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/fit-coach/pipeline"
)

func main() {
	js.Global().Set("replayFit", js.FuncOf(replayFit))
	select {}
}

// replayFit(fileBytes, {format, poll_s, gzip}) replays a FIT file through the coach and
// returns the artifacts zipped.
func replayFit(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: fileBytes(Uint8Array), options(object)")
	}
	fileArg, optsArg := args[0], args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("fit file bytes are required")
	}
	fileBytes := make([]byte, fileArg.Get("length").Int())
	if js.CopyBytesToGo(fileBytes, fileArg) == 0 {
		return failure("failed to read FIT bytes from JS input")
	}

	format := "csv"
	if v, ok := option(optsArg, "format", js.TypeString); ok && v.String() != "" {
		format = v.String()
	}
	var poll time.Duration
	if v, ok := option(optsArg, "poll_s", js.TypeNumber); ok {
		poll = time.Duration(v.Float() * float64(time.Second))
	}
	gz, ok := option(optsArg, "gzip", js.TypeBoolean)

	result, err := pipeline.RunBytes(pipeline.BytesOptions{
		FitData:  fileBytes,
		Format:   format,
		Compress: ok && gz.Bool(),
		Replay:   pipeline.ReplayOptions{PollInterval: poll},
	})
	if err != nil {
		return failure(err.Error())
	}

	names := make([]string, 0, len(result.Files))
	for name := range result.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	zipBytes, err := zipArtifacts(names, result.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	files := make([]any, len(names))
	for i, name := range names {
		files[i] = name
	}
	return map[string]any{
		"ok":             true,
		"zip":            payload,
		"files":          files,
		"sample_count":   result.SampleCount,
		"poll_count":     result.PollCount,
		"feedback_count": result.FeedbackCount,
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

// option returns opts[key] when it is set and of type want.
func option(opts js.Value, key string, want js.Type) (js.Value, bool) {
	if opts.Type() != js.TypeObject {
		return js.Undefined(), false
	}
	v := opts.Get(key)
	return v, v.Type() == want
}

// zipArtifacts stores files in name order with a fixed mod time so output is reproducible.
func zipArtifacts(names []string, files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	epoch := time.Unix(0, 0).UTC()
	for _, name := range names {
		h := &zip.FileHeader{Name: name, Method: zip.Deflate}
		h.SetModTime(epoch)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
