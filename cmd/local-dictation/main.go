package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"

	"github.com/yok-tottii/local-dictation/cmd/local-dictation/cmd"
)

func init() {
	// macOSのホットキー登録にはメインスレッドが必要
	runtime.LockOSThread()
}

func main() {
	var err error
	mainthread.Init(func() {
		err = cmd.Execute()
	})
	if err != nil {
		os.Exit(1)
	}
}
