package excel

import (
	"math"
	"strconv"

	"gammastack/domain/dataset"
)

// RawRowData represents a row of raw sheet data as header-value pairs
type RawRowData map[string]string

// SheetData represents one sheet or CSV file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// infoColumn maps one info table column onto the Info struct
type infoColumn struct {
	header string
	value  func(*dataset.Info) interface{}
	set    func(*dataset.Info, string) error
}

func floatColumn(header string, field func(*dataset.Info) *float64) infoColumn {
	return infoColumn{
		header: header,
		value:  func(i *dataset.Info) interface{} {
			v := *field(i)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil
			}
			return v
		},
		set: func(i *dataset.Info, s string) error {
			v, err := parseFloat(s)
			if err != nil {
				return err
			}
			*field(i) = v
			return nil
		},
	}
}

func intColumn(header string, field func(*dataset.Info) *int) infoColumn {
	return infoColumn{
		header: header,
		value:  func(i *dataset.Info) interface{} { return *field(i) },
		set: func(i *dataset.Info, s string) error {
			if s == "" {
				*field(i) = 0
				return nil
			}
			v, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			*field(i) = v
			return nil
		},
	}
}

func stringColumn(header string, field func(*dataset.Info) *string) infoColumn {
	return infoColumn{
		header: header,
		value:  func(i *dataset.Info) interface{} { return *field(i) },
		set: func(i *dataset.Info, s string) error {
			*field(i) = s
			return nil
		},
	}
}

// infoColumns lists the exported columns in sheet order
var infoColumns = []infoColumn{
	stringColumn("name", func(i *dataset.Info) *string { return &i.Name }),
	floatColumn("counts", func(i *dataset.Info) *float64 { return &i.Counts }),
	floatColumn("background", func(i *dataset.Info) *float64 { return &i.Background }),
	floatColumn("excess", func(i *dataset.Info) *float64 { return &i.Excess }),
	floatColumn("sqrt_ts", func(i *dataset.Info) *float64 { return &i.SqrtTS }),
	floatColumn("npred", func(i *dataset.Info) *float64 { return &i.NPred }),
	floatColumn("npred_background", func(i *dataset.Info) *float64 { return &i.NPredBackground }),
	floatColumn("npred_signal", func(i *dataset.Info) *float64 { return &i.NPredSignal }),
	floatColumn("exposure_min", func(i *dataset.Info) *float64 { return &i.ExposureMin }),
	floatColumn("exposure_max", func(i *dataset.Info) *float64 { return &i.ExposureMax }),
	floatColumn("livetime", func(i *dataset.Info) *float64 { return &i.Livetime }),
	floatColumn("ontime", func(i *dataset.Info) *float64 { return &i.Ontime }),
	floatColumn("counts_rate", func(i *dataset.Info) *float64 { return &i.CountsRate }),
	floatColumn("background_rate", func(i *dataset.Info) *float64 { return &i.BackgroundRate }),
	floatColumn("excess_rate", func(i *dataset.Info) *float64 { return &i.ExcessRate }),
	intColumn("n_bins", func(i *dataset.Info) *int { return &i.NBins }),
	intColumn("n_fit_bins", func(i *dataset.Info) *int { return &i.NFitBins }),
	stringColumn("stat_type", func(i *dataset.Info) *string { return &i.StatType }),
	floatColumn("stat_sum", func(i *dataset.Info) *float64 { return &i.StatSum }),
	floatColumn("counts_off", func(i *dataset.Info) *float64 { return &i.CountsOff }),
	floatColumn("acceptance", func(i *dataset.Info) *float64 { return &i.Acceptance }),
	floatColumn("acceptance_off", func(i *dataset.Info) *float64 { return &i.AcceptanceOff }),
	floatColumn("alpha", func(i *dataset.Info) *float64 { return &i.Alpha }),
}
