package main

import "strconv"

// FormatFloat renders an optional metric value, "n/a" when absent.
func FormatFloat(value *float64, digits int) string {
	if value == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*value, 'f', digits, 64)
}

func medianOf(s *Stats) *float64 {
	if s == nil {
		return nil
	}
	return &s.Median
}

func meanOf(s *Stats) *float64 {
	if s == nil {
		return nil
	}
	return &s.Mean
}
