package main

import (
	"io"
	"os"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"
	ntfs_parser "www.velocidex.com/golang/go-ntfs/parser"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("godj",
		"Extract files from unmounted ext2/3/4 volumes in disk order.")

	verbose_flag = app.Flag(
		"verbose", "Show verbose information").Bool()

	debug_flag = app.Flag(
		"debug", "Show debug information").Bool()

	log_file_flag = app.Flag(
		"log_file", "Write the log to this file instead of stderr").String()

	command_handlers []CommandHandler
)

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	for _, command_handler := range command_handlers {
		if command_handler(command) {
			break
		}
	}
}

func getReader(reader io.ReaderAt) io.ReaderAt {
	return reader
}

// getPagedReader caches metadata reads. Extent trees and directories
// are read in small pieces all over the volume.
func getPagedReader(reader io.ReaderAt) io.ReaderAt {
	paged, err := ntfs_parser.NewPagedReader(getReader(reader), 4096, 10000)
	kingpin.FatalIfError(err, "Can not open filesystem")
	return paged
}

func getLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	if *verbose_flag {
		logger.SetLevel(logrus.InfoLevel)
	}

	if *debug_flag {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *log_file_flag != "" {
		fd, err := os.OpenFile(*log_file_flag,
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640)
		kingpin.FatalIfError(err, "Can not open log file")
		logger.SetOutput(fd)
	}

	return logger
}
