// Package utils provides common utility functions for the catalog-sync application.
// It includes helpers for coercing loosely typed remote payload values (numbers
// sent as strings, flags sent as 0/1) into Go types.
package utils
