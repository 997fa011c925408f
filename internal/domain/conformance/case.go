package conformance

// TestCase describes one program fed to the compiler and the outcome it is
// expected to produce.
type TestCase struct {
	Name string
	// File is the record's file name, relative to the programs directory.
	File string
	// SourcePath is File resolved to an absolute path.
	SourcePath    string
	ShouldCompile bool
	// ExpectedExitCode is only consulted when ShouldCompile is true.
	ExpectedExitCode int64
}
