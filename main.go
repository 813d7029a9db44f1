package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xdataflash/logger"
	"github.com/zhukovaskychina/xdataflash/server/conf"
	"github.com/zhukovaskychina/xdataflash/server/dataflash"
	"github.com/zhukovaskychina/xdataflash/server/dataflash/device"
	"github.com/zhukovaskychina/xdataflash/server/dataflash/logfile"
	"github.com/zhukovaskychina/xdataflash/util"
)

// stdout 命令输出，测试中替换
var stdout io.Writer = os.Stdout

// Globals 所有子命令共享的参数
type Globals struct {
	Config string `name:"config" short:"c" help:"Config file (.ini or .toml)" type:"path"`
	Image  string `name:"image" short:"i" help:"Flash image path, overrides dataflash.image_path"`
}

// CLI defines the command-line interface using Kong
type CLI struct {
	Globals

	Format FormatCmd `cmd:"" help:"Erase the whole medium and write the format stamp"`
	Info   InfoCmd   `cmd:"" help:"Show geometry, format state and the logs on the medium"`
	Write  WriteCmd  `cmd:"" help:"Append a file to the medium as a new log"`
	Dump   DumpCmd   `cmd:"" help:"Copy one log's payload out of the medium"`
}

// flash 打开的镜像及其上的 DataFlash
type flash struct {
	cfg *conf.Cfg
	dev *device.FileDevice
	df  *dataflash.DataFlash
}

func openFlash(g *Globals, mutate func(o *dataflash.Options)) (*flash, error) {
	cfg, err := conf.NewCfg().Load(&conf.CommandLineArgs{ConfigPath: g.Config, ImagePath: g.Image})
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(logger.LogConfig{
		ErrorLogPath: cfg.LogError,
		InfoLogPath:  cfg.LogInfos,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	opts, err := optionsFromCfg(cfg)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(&opts)
	}

	dev := device.NewFileDevice(cfg.ImagePath, device.Geometry{
		PageSize:       cfg.PageSize,
		PagesPerSector: uint32(cfg.PagesPerSector),
		Sectors:        uint32(cfg.Sectors),
	})
	dev.AutoErase = cfg.AutoErase
	if err := dev.Open(); err != nil {
		return nil, err
	}
	df, err := dataflash.New(dev, opts)
	if err != nil {
		dev.Close()
		return nil, err
	}
	logger.Debugf("opened %s: %d log pages of %d bytes", cfg.ImagePath, df.NumPages(), cfg.PageSize)
	return &flash{cfg: cfg, dev: dev, df: df}, nil
}

func optionsFromCfg(cfg *conf.Cfg) (dataflash.Options, error) {
	wrap, err := dataflash.ParseWrapPolicy(cfg.WrapPolicy)
	if err != nil {
		return dataflash.Options{}, err
	}
	opts := dataflash.DefaultOptions()
	opts.DoubleBuffer = cfg.DoubleBuffer
	opts.SectorEraseCheck = cfg.SectorEraseCheck
	opts.WrapPolicy = wrap
	opts.ReadyTimeout = cfg.ReadyTimeoutDuration
	opts.ReadyPollInterval = cfg.ReadyPollIntervalDuration
	opts.EraseBatch = cfg.EraseBatch
	opts.EraseBatchDelay = cfg.EraseBatchDelayDuration
	opts.FormatSettleDelay = cfg.FormatSettleDelayDuration
	return opts, nil
}

func (f *flash) Close() error {
	if err := f.dev.Sync(); err != nil {
		f.dev.Close()
		return err
	}
	return f.dev.Close()
}

type FormatCmd struct{}

func (c *FormatCmd) Run(g *Globals) error {
	var batch uint32
	f, err := openFlash(g, func(o *dataflash.Options) {
		batch = uint32(o.EraseBatch)
		o.OnEraseProgress = func(done, total uint32) {
			if done == total || (batch > 0 && done%batch == 0) {
				fmt.Fprintf(stdout, "erased %d/%d sectors\n", done, total)
			}
		}
	})
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.df.EraseAll(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "formatted %s, stamp 0x%08x at page %d\n", f.cfg.ImagePath, dataflash.LoggingFormat, f.df.StampPage())
	return nil
}

type InfoCmd struct{}

func (c *InfoCmd) Run(g *Globals) error {
	f, err := openFlash(g, nil)
	if err != nil {
		return err
	}
	defer f.Close()

	geometry := f.df.Geometry()
	fmt.Fprintf(stdout, "image:      %s\n", f.cfg.ImagePath)
	fmt.Fprintf(stdout, "geometry:   %d sectors x %d pages x %d bytes\n", geometry.Sectors, geometry.PagesPerSector, geometry.PageSize)
	fmt.Fprintf(stdout, "log pages:  1..%d, stamp page %d\n", f.df.NumPages(), f.df.StampPage())
	fmt.Fprintf(stdout, "wrap:       %s\n", f.df.WrapPolicy())
	if f.df.NeedErase() {
		fmt.Fprintln(stdout, "format:     needs erase")
		return nil
	}
	fmt.Fprintln(stdout, "format:     ok")

	idx, err := logfile.Scan(f.df)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "logs:       %d\n", idx.NumLogs())
	for _, l := range idx.Logs() {
		fmt.Fprintf(stdout, "  #%-5d pages %d..%d (%d pages, %d bytes)\n",
			l.FileNumber, l.StartPage, l.EndPage, l.Pages, int(l.Pages)*f.df.PayloadSize())
	}
	fmt.Fprintf(stdout, "next page:  %d\n", idx.NextWritePage())
	return nil
}

type WriteCmd struct {
	Input string `arg:"" help:"File to store as a new log" type:"existingfile"`
}

func (c *WriteCmd) Run(g *Globals) error {
	f, err := openFlash(g, nil)
	if err != nil {
		return err
	}
	defer f.Close()

	in, err := os.Open(c.Input)
	if err != nil {
		return errors.Wrapf(err, "open %s", c.Input)
	}
	defer in.Close()

	w, fileNumber, err := logfile.StartNewLog(f.df)
	if err != nil {
		return err
	}
	digest := util.NewDigest()
	buf := make([]byte, f.df.PayloadSize())
	var total int64
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			w.WriteBlock(buf[:n])
			digest.Write(buf[:n])
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			w.Close()
			return errors.Wrapf(rerr, "read %s", c.Input)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	stats := f.df.Stats()
	fmt.Fprintf(stdout, "log %d: %d bytes in %d pages, xxhash %s\n",
		fileNumber, total, stats.PagesWritten, util.FormatDigest(digest.Sum64()))
	if stats.BytesDropped > 0 {
		return errors.Wrapf(dataflash.ErrLogFull, "%d bytes dropped", stats.BytesDropped)
	}
	return nil
}

type DumpCmd struct {
	FileNumber uint16 `arg:"" help:"Log file number"`
	Out        string `name:"out" short:"o" help:"Output file (default: stdout)"`
}

func (c *DumpCmd) Run(g *Globals) error {
	f, err := openFlash(g, nil)
	if err != nil {
		return err
	}
	defer f.Close()

	out := stdout
	report := stdout
	if c.Out == "" {
		// 数据占用 stdout，日志和摘要改走 stderr
		logger.SetOutput(os.Stderr, f.cfg.LogLevel)
		report = os.Stderr
	} else {
		file, err := os.Create(c.Out)
		if err != nil {
			return errors.Wrapf(err, "create %s", c.Out)
		}
		defer file.Close()
		out = file
	}

	digest := util.NewDigest()
	n, err := logfile.ReadLog(f.df, c.FileNumber, io.MultiWriter(out, digest))
	if err != nil {
		return err
	}
	fmt.Fprintf(report, "log %d: %d bytes, xxhash %s\n", c.FileNumber, n, util.FormatDigest(digest.Sum64()))
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("xdataflash"),
		kong.Description("Block-oriented flight data log on a NOR flash image"),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
