//go:build js

package pipeline

import "errors"

func marshalTimelineParquet([]TimelineRow) ([]byte, error) {
	return nil, errors.New("parquet output is not available in the browser build; use csv")
}
