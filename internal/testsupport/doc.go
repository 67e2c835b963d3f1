// Package testsupport builds throwaway configurations, stub executables and
// free ports for package tests.
package testsupport
