package main

import (
	"fmt"
	"os"

	"github.com/Velocidex/go-diskjockey/parser"
	kingpin "github.com/alecthomas/kingpin/v2"
)

var (
	ls_command = app.Command(
		"ls", "List files and directories inside the volume.")

	ls_command_device_arg = ls_command.Arg(
		"device", "The block device or image holding the volume",
	).Required().String()

	ls_command_path_arg = ls_command.Arg(
		"path", "Directory to list").Default("/").String()

	ls_command_files = ls_command.Flag(
		"files", "List regular files").Bool()

	ls_command_dirs = ls_command.Flag(
		"dirs", "List directories").Bool()

	ls_command_recursive = ls_command.Flag(
		"recursive", "Descend into subdirectories").Short('R').Bool()
)

func doLs() {
	fd, err := os.Open(*ls_command_device_arg)
	kingpin.FatalIfError(err, "Can not open device")
	defer fd.Close()

	ext_ctx, err := parser.GetExtContext(getPagedReader(fd))
	kingpin.FatalIfError(err, "Can not open filesystem")

	// Without a filter list everything.
	show_files := *ls_command_files || !*ls_command_dirs
	show_dirs := *ls_command_dirs || !*ls_command_files

	err = ext_ctx.Walk(*ls_command_path_arg, *ls_command_recursive,
		func(name string, inode *parser.Inode) error {
			if (inode.IsDir() && show_dirs) ||
				(inode.IsRegular() && show_files) {
				fmt.Println(name)
			}
			return nil
		})
	kingpin.FatalIfError(err, "Can not list %v", *ls_command_path_arg)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case ls_command.FullCommand():
			doLs()
		default:
			return false
		}
		return true
	})
}
