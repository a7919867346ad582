package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path"

	"github.com/fansqz/debugview/constants"
)

// CompileFile 把代码保存到工作目录并编译成带调试信息的可执行文件
func CompileFile(workPath string, code string, language constants.LanguageType) (string, error) {
	// 创建工作目录, 用户的临时文件
	if err := os.MkdirAll(workPath, os.ModePerm); err != nil {
		return "", err
	}
	compiler, codeFile := "gcc", path.Join(workPath, "main.c")
	if language == constants.LanguageCpp {
		compiler, codeFile = "g++", path.Join(workPath, "main.cpp")
	}
	if err := os.WriteFile(codeFile, []byte(code), 0644); err != nil {
		return "", err
	}
	execFile := path.Join(workPath, "main")
	cmd := exec.Command(compiler, "-g", "-O0", "-o", execFile, codeFile)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%s: %w\n%s", compiler, err, output)
	}
	return execFile, nil
}
