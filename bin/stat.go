package main

import (
	"os"

	"github.com/Velocidex/go-diskjockey/parser"
	kingpin "github.com/alecthomas/kingpin/v2"
)

var (
	info_command = app.Command(
		"info", "Show the volume summary.")

	info_command_device_arg = info_command.Arg(
		"device", "The block device or image to inspect",
	).Required().String()

	info_command_inode = info_command.Flag(
		"inode", "Also show this inode").Uint64()
)

func doInfo() {
	fd, err := os.Open(*info_command_device_arg)
	kingpin.FatalIfError(err, "Can not open device")
	defer fd.Close()

	ext_ctx, err := parser.GetExtContext(getPagedReader(fd))
	kingpin.FatalIfError(err, "Can not open filesystem")

	Dump(os.Stdout, ext_ctx.Stats())

	if *info_command_inode > 0 {
		inode, err := ext_ctx.Stat(*info_command_inode)
		kingpin.FatalIfError(err, "Can not read inode")
		Dump(os.Stdout, inode)
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case info_command.FullCommand():
			doInfo()
		default:
			return false
		}
		return true
	})
}
