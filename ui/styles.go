package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/fansqz/debugview/constants"
)

var (
	colorCommand = lipgloss.Color("12")
	colorEngine  = lipgloss.Color("10")
	colorError   = lipgloss.Color("9")
	colorChanged = lipgloss.Color("220")
	colorDim     = lipgloss.Color("241")
	colorFocus   = lipgloss.Color("39")

	// 输出面板按来源着色，被调试程序的输出使用默认前景色
	commandStyle = lipgloss.NewStyle().Foreground(colorCommand)
	engineStyle  = lipgloss.NewStyle().Foreground(colorEngine)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	programStyle = lipgloss.NewStyle()
	statusStyle  = lipgloss.NewStyle().Bold(true)

	changedStyle  = lipgloss.NewStyle().Foreground(colorChanged).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	currentStyle  = lipgloss.NewStyle().Reverse(true)
	selectedStyle = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	titleStyle    = lipgloss.NewStyle().Bold(true)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorDim)

	focusedPaneStyle = paneStyle.BorderForeground(colorFocus)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)
)

// originStyle 输出文本来源对应的样式
func originStyle(origin constants.OutputOrigin) lipgloss.Style {
	switch origin {
	case constants.OriginCommand:
		return commandStyle
	case constants.OriginEngine:
		return engineStyle
	case constants.OriginEngineError:
		return errorStyle
	case constants.OriginStatus:
		return statusStyle
	}
	return programStyle
}
