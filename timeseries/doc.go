// Package timeseries provides Frame, the hierarchical panel container consumed and produced by
// every forecaster in sciforecast.
//
// A Frame row is addressed by an Index: zero or more hierarchy levels followed by an integer time
// point. A frame without levels is a single series, one level makes a panel and two or more make
// a hierarchy. Values live in a gonum dense matrix with one named column per variable; missing
// observations are NaN.
//
//	y := timeseries.NewSeries("sales", []float64{3, 0, 4, 0, 5})
//	panel, err := timeseries.ReadCSV(r, &timeseries.CSVOptions{LevelColumns: []string{"store"}})
package timeseries
