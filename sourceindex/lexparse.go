// Package sourceindex 通过语法解析在C/C++源码中定位函数定义
package sourceindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/fansqz/debugview/constants"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// FunctionInfo 存储函数定义的位置
type FunctionInfo struct {
	// Name 函数名，c++中可能带有作用域，比如 Tree::insert
	Name string
	// Line 函数名所在行，从1开始
	Line   int
	Column int
	// EndLine 函数体结束的行
	EndLine int
}

// ParseSourceFile 解析C/C++文件，返回所有函数定义
func ParseSourceFile(content []byte, languageType constants.LanguageType) ([]FunctionInfo, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	switch languageType {
	case constants.LanguageC:
		parser.SetLanguage(c.GetLanguage())
	case constants.LanguageCpp:
		parser.SetLanguage(cpp.GetLanguage())
	default:
		return nil, fmt.Errorf("unsupported language %q", languageType)
	}
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("解析失败: %w", err)
	}
	defer tree.Close()

	var functions []FunctionInfo
	// 使用栈来手动管理节点遍历
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.Type() == "function_definition" {
			if identifier := functionIdentifier(node.ChildByFieldName("declarator")); identifier != nil {
				functions = append(functions, FunctionInfo{
					Name:    identifier.Content(content),
					Line:    int(identifier.StartPoint().Row + 1),
					Column:  int(identifier.StartPoint().Column + 1),
					EndLine: int(node.EndPoint().Row + 1),
				})
			}
		}
		// 子节点逆序入栈，保证按源码顺序输出
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}
	return functions, nil
}

// functionIdentifier 找到函数声明中的名字节点
// 返回指针或引用的函数，名字外面会包一层pointer_declarator/reference_declarator
func functionIdentifier(declarator *sitter.Node) *sitter.Node {
	for declarator != nil {
		switch declarator.Type() {
		case "function_declarator":
			return declarator.ChildByFieldName("declarator")
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator":
			next := declarator.ChildByFieldName("declarator")
			if next == nil && declarator.NamedChildCount() > 0 {
				// reference_declarator没有declarator字段
				next = declarator.NamedChild(int(declarator.NamedChildCount()) - 1)
			}
			declarator = next
		default:
			return nil
		}
	}
	return nil
}

// FindFunction 返回函数定义所在的行
// name 是调试引擎报告的函数名，可能带有参数列表，比如 Tree::insert(int)
func FindFunction(content []byte, languageType constants.LanguageType, name string) (int, bool) {
	name = NormalizeFunctionName(name)
	if name == "" {
		return 0, false
	}
	functions, err := ParseSourceFile(content, languageType)
	if err != nil {
		return 0, false
	}
	// 优先完整匹配，其次匹配不带作用域的名字
	for _, f := range functions {
		if f.Name == name {
			return f.Line, true
		}
	}
	short := shortName(name)
	for _, f := range functions {
		if shortName(f.Name) == short {
			return f.Line, true
		}
	}
	return 0, false
}

// NormalizeFunctionName 去掉参数列表和模板参数，比如
// Tree<int>::insert(int) const -> Tree::insert
func NormalizeFunctionName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	var b strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func shortName(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
