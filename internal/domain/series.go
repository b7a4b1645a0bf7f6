package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// StationSeries is the per-station artifact handed to the rendering stage.
type StationSeries struct {
	Provider    string            `json:"provider"`
	StationID   int               `json:"station_id"`
	StationCode int               `json:"station_code"`
	Name        string            `json:"name"`
	Country     string            `json:"cn"`
	XAxis       []time.Time       `json:"x_axis"`
	Lines       map[string]Values `json:"lines"`
	Legend      []string          `json:"legend"`
	Decades     DecadeTable       `json:"decades"`
	Sources     []Source          `json:"sources"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// Values is a date-aligned series where NaN marks a missing day.
// NaN encodes as JSON null.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(appendFloat(nil, f))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}

// DecadeTable maps decade -> series label -> mean. NaN encodes as JSON null.
type DecadeTable map[int]map[string]float64

func (t DecadeTable) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]json.RawMessage, len(t))
	for decade, row := range t {
		r := make(map[string]json.RawMessage, len(row))
		for label, f := range row {
			r[label] = appendFloat(nil, f)
		}
		out[strconv.Itoa(decade)] = r
	}
	return json.Marshal(out)
}

func (t *DecadeTable) UnmarshalJSON(data []byte) error {
	var raw map[int]map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DecadeTable, len(raw))
	for decade, row := range raw {
		r := make(map[string]float64, len(row))
		for label, p := range row {
			if p == nil {
				r[label] = math.NaN()
				continue
			}
			r[label] = *p
		}
		out[decade] = r
	}
	*t = out
	return nil
}

func appendFloat(dst []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, "null"...)
	}
	return strconv.AppendFloat(dst, f, 'f', -1, 64)
}
