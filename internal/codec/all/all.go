// Package all registers every codec with the core registry.
// Import this package to make all formats available.
package all

import (
	_ "github.com/JonMunkholm/tabx/internal/codec/html"
	_ "github.com/JonMunkholm/tabx/internal/codec/text"
	_ "github.com/JonMunkholm/tabx/internal/codec/xls"
	_ "github.com/JonMunkholm/tabx/internal/codec/xlsx"
)
