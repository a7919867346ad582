package pump

import (
	"github.com/emirpasic/gods/sets"
	"github.com/fansqz/debugview/constants"
	"github.com/fansqz/debugview/utils"
)

var (
	stoppedViews = []constants.ViewID{
		constants.ViewStack,
		constants.ViewCode,
		constants.ViewDisassembly,
		constants.ViewLocals,
		constants.ViewRegisters,
		constants.ViewStatus,
	}
	terminalViews      = []constants.ViewID{constants.ViewOutput, constants.ViewStatus}
	informationalViews = []constants.ViewID{constants.ViewStatus}
)

// ViewsToRefresh 进程从from状态变为to状态时需要刷新的视图
// 会话终止以后，除了重新启动，任何状态变化都不再刷新视图
func ViewsToRefresh(from, to constants.ProcessState) sets.Set {
	if from.IsTerminal() && to != constants.StateLaunching && to != constants.StateAttaching {
		return utils.List2set([]constants.ViewID{})
	}
	switch {
	case to == constants.StateStopped:
		return utils.List2set(stoppedViews)
	case to.IsTerminal():
		return utils.List2set(terminalViews)
	case to.IsInformational():
		return utils.List2set(informationalViews)
	}
	return utils.List2set([]constants.ViewID{})
}
