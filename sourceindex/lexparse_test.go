package sourceindex

import (
	"testing"

	"github.com/fansqz/debugview/constants"
	"github.com/stretchr/testify/assert"
)

const ContentC = `#include <stdio.h>
#include <stdlib.h>
// 定义结构体类型
typedef struct {
   int id;
   float weight;
} Item;
// 全局变量
int globalInt = 10;
Item globalItem = {1, 65.5};
// 函数声明
void manipulateLocals(int argint);
static Item *newItem(int id);
int main() {
   manipulateLocals(2);
   free(newItem(3));
   return 0;
}
void manipulateLocals(int argint) {
   int localInt = 5;
   Item localItem;
   localItem.id = argint;
   printf("localInt: %d, id=%d\n", localInt, localItem.id);
}
static Item *newItem(int id) {
   Item *item = (Item *) malloc(sizeof(Item));
   item->id = id;
   return item;
}
`

const ContentCpp = `#include <vector>
template <typename T>
class Tree {
public:
    void insert(T v);
    int size() const { return static_cast<int>(values.size()); }
private:
    std::vector<T> values;
};

template <typename T>
void Tree<T>::insert(T v) {
    values.push_back(v);
}

const std::vector<int> &empty() {
    static std::vector<int> v;
    return v;
}

int main() {
    Tree<int> t;
    t.insert(1);
    return t.size();
}
`

func TestParseSourceFile(t *testing.T) {
	answer, err := ParseSourceFile([]byte(ContentC), constants.LanguageC)
	assert.Nil(t, err)
	names := make([]string, 0, len(answer))
	for _, f := range answer {
		names = append(names, f.Name)
	}
	// 只有定义，没有声明
	assert.Equal(t, []string{"main", "manipulateLocals", "newItem"}, names)
	assert.Equal(t, 14, answer[0].Line)
	assert.Equal(t, 18, answer[0].EndLine)
}

func TestParseSourceFileUnsupported(t *testing.T) {
	_, err := ParseSourceFile([]byte("fn main() {}"), constants.LanguageUnknown)
	assert.NotNil(t, err)
}

func TestFindFunction(t *testing.T) {
	line, ok := FindFunction([]byte(ContentC), constants.LanguageC, "manipulateLocals")
	assert.True(t, ok)
	assert.Equal(t, 19, line)

	// 返回指针的函数
	line, ok = FindFunction([]byte(ContentC), constants.LanguageC, "newItem")
	assert.True(t, ok)
	assert.Equal(t, 25, line)

	_, ok = FindFunction([]byte(ContentC), constants.LanguageC, "missing")
	assert.False(t, ok)
	_, ok = FindFunction([]byte(ContentC), constants.LanguageC, "")
	assert.False(t, ok)
}

func TestFindFunctionCpp(t *testing.T) {
	line, ok := FindFunction([]byte(ContentCpp), constants.LanguageCpp, "Tree<int>::insert(int)")
	assert.True(t, ok)
	assert.Equal(t, 12, line)

	line, ok = FindFunction([]byte(ContentCpp), constants.LanguageCpp, "main")
	assert.True(t, ok)
	assert.Equal(t, 21, line)

	line, ok = FindFunction([]byte(ContentCpp), constants.LanguageCpp, "empty()")
	assert.True(t, ok)
	assert.Equal(t, 16, line)
}

func TestNormalizeFunctionName(t *testing.T) {
	assert.Equal(t, "Tree::insert", NormalizeFunctionName("Tree<int>::insert(int) const"))
	assert.Equal(t, "main", NormalizeFunctionName(" main "))
	assert.Equal(t, "std::vector::push_back", NormalizeFunctionName("std::vector<int, std::allocator<int> >::push_back(int const&)"))
}
