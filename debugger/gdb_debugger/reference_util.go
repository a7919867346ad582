package gdb_debugger

import (
	"strconv"
	"sync"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// ReferenceUtil 管理gdb中创建的变量对象
// 每个根变量对象需要一个唯一名称，读取完以后要及时删除，否则gdb会一直更新它们
type ReferenceUtil struct {
	mutex   sync.Mutex
	nextRef int
	// 还没有删除的根变量对象
	live *linkedhashset.Set
}

func NewReferenceUtil() *ReferenceUtil {
	return &ReferenceUtil{
		live: linkedhashset.New(),
	}
}

// CreateVarName 分配一个变量对象名称
func (r *ReferenceUtil) CreateVarName() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.nextRef++
	name := "dv" + strconv.Itoa(r.nextRef)
	r.live.Add(name)
	return name
}

// Release 变量对象已经删除
func (r *ReferenceUtil) Release(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.live.Remove(name)
}

// Live 还没有删除的变量对象，按创建顺序
func (r *ReferenceUtil) Live() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	answer := make([]string, 0, r.live.Size())
	for _, v := range r.live.Values() {
		answer = append(answer, v.(string))
	}
	return answer
}

// Reset 进程重启时gdb会丢弃所有变量对象
func (r *ReferenceUtil) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.live.Clear()
}
