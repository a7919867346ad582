package constants

import (
	"path/filepath"
	"strings"
)

type LanguageType string

const (
	LanguageC       LanguageType = "c"
	LanguageCpp     LanguageType = "cpp"
	LanguageUnknown LanguageType = ""
)

// DetectLanguage 根据源文件后缀判断语言
func DetectLanguage(filename string) LanguageType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".c", ".h":
		return LanguageC
	case ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx":
		return LanguageCpp
	}
	return LanguageUnknown
}
