package main

import (
	"bufio"
	"os"
	"time"

	"github.com/Velocidex/go-diskjockey/actions"
	"github.com/Velocidex/go-diskjockey/extractor"
	"github.com/Velocidex/go-diskjockey/parser"
	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	read_command = app.Command(
		"read", "Read files from the volume in disk order.")

	read_command_device_arg = read_command.Arg(
		"device", "The block device or image holding the volume",
	).Required().String()

	read_command_path_arg = read_command.Arg(
		"path", "File or directory inside the volume").Default("/").String()

	read_command_action = read_command.Flag(
		"action", "What to do with the file data").
		Default("md5").Enum(actions.Names()...)

	read_command_max_inodes = read_command.Flag(
		"max_inodes", "Number of files buffered at once").
		Default("100").Int()

	read_command_max_blocks = read_command.Flag(
		"max_blocks", "Number of blocks buffered at once").
		Default("128000").Uint64()

	read_command_coalesce = read_command.Flag(
		"coalesce", "Largest gap in blocks read over to join two reads").
		Default("1").Uint64()

	read_command_max_run_blocks = read_command.Flag(
		"max_run_blocks", "Longest run of blocks handed out at once, at most max_blocks").
		Default("1024").Uint64()

	read_command_direct = read_command.Flag(
		"direct", "Bypass the page cache (O_DIRECT)").Bool()

	read_command_advice = read_command.Flag(
		"advice", "Read-ahead advice for the device").
		Default("sequential").Enum(extractor.AdviceNames...)

	read_command_no_per_file_cap = read_command.Flag(
		"no_per_file_cap", "Let a single file use the whole block budget in one pass").Bool()

	read_command_abort_on_short_read = read_command.Flag(
		"abort_on_short_read", "Stop at the first short device read").Bool()

	read_command_output = read_command.Flag(
		"output", "Output directory for the extract action").String()

	read_command_compress = read_command.Flag(
		"compress", "Compress extracted files with zstd").Bool()

	read_command_metrics_file = read_command.Flag(
		"metrics_file", "Write prometheus metrics to this file when done").String()

	read_command_stats = read_command.Flag(
		"stats", "Print extraction statistics when done").Bool()
)

func readOptions() extractor.Options {
	options := extractor.DefaultOptions()
	options.MaxInodes = *read_command_max_inodes
	options.MaxBlocks = *read_command_max_blocks
	options.CoalesceDistance = *read_command_coalesce
	options.MaxRunBlocks = *read_command_max_run_blocks
	if options.MaxRunBlocks > options.MaxBlocks {
		options.MaxRunBlocks = options.MaxBlocks
	}
	options.PerFileCap = !*read_command_no_per_file_cap
	options.AbortOnShortRead = *read_command_abort_on_short_read
	return options
}

func doRead() {
	logger := getLogger()

	fd, err := os.Open(*read_command_device_arg)
	kingpin.FatalIfError(err, "Can not open device")
	defer fd.Close()

	ext_ctx, err := parser.GetExtContext(getPagedReader(fd))
	kingpin.FatalIfError(err, "Can not open filesystem")

	start := time.Now()
	logger.Info("BEGIN INODE SCAN")
	files, err := ext_ctx.ListRegularFiles(*read_command_path_arg)
	kingpin.FatalIfError(err, "Can not list %v", *read_command_path_arg)
	logger.WithFields(logrus.Fields{
		"files":    len(files),
		"duration": time.Since(start),
	}).Info("END INODE SCAN")

	advice, err := extractor.ParseAdvice(*read_command_advice)
	kingpin.FatalIfError(err, "Invalid advice")

	device, err := extractor.OpenDevice(*read_command_device_arg,
		extractor.DeviceOptions{
			Direct: *read_command_direct,
			Advice: advice,
			Logger: logger,
		})
	kingpin.FatalIfError(err, "Can not open device")
	defer device.Close()

	registry := prometheus.NewRegistry()
	metrics, err := extractor.NewMetrics(registry)
	kingpin.FatalIfError(err, "Metrics")

	options := readOptions()
	options.Logger = logger
	options.Metrics = metrics

	out := bufio.NewWriterSize(os.Stdout, 1024*1024)
	consumer, err := actions.New(*read_command_action, out, actions.Options{
		OutputDir: *read_command_output,
		Compress:  *read_command_compress,
		Logger:    logger,
	})
	kingpin.FatalIfError(err, "Can not create action")

	scheduler, err := extractor.NewScheduler(ext_ctx, device, consumer, options)
	kingpin.FatalIfError(err, "Invalid options")

	run_err := scheduler.Run(files)
	err = out.Flush()
	kingpin.FatalIfError(err, "Writing output")

	if *read_command_metrics_file != "" {
		err = prometheus.WriteToTextfile(*read_command_metrics_file, registry)
		kingpin.FatalIfError(err, "Writing metrics")
	}

	// Keep stdout clean for the raw output actions.
	if *read_command_stats {
		Dump(os.Stderr, scheduler.Stats())
	}

	kingpin.FatalIfError(run_err, "Extraction failed")
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case read_command.FullCommand():
			doRead()
		default:
			return false
		}
		return true
	})
}
