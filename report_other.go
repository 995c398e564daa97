//go:build !windows

package gpuinterop

// showErrorBox has no modal counterpart off Windows; the warning logged by
// ReportFeatureError is the report.
func showErrorBox(string, string) error { return nil }
