package cmd

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/sarchlab/busim/config"
)

const systemFile = `
[clock]
max_ticks_per_access = 20

[[devices]]
name = "rom"
start = 0x0
size = 0x10
latency = 1
byte_order = "big"

[[devices]]
name = "ram"
start = 0x100
size = 0x20
latency = 0
`

var _ = Describe("Commands", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	execute := func(args ...string) error {
		rootCmd.SetArgs(args)
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)

		return rootCmd.Execute()
	}

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = new(bytes.Buffer)

		configFile = ""
		logLevel = ""
		envFiles = nil
		words = 16
		withMonitor = false
	})

	It("should print the address map", func() {
		path := writeFile("system.toml", systemFile)

		Expect(execute("validate", "--config", path)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("2 device(s), at most 20 ticks"))
		Expect(out.String()).To(ContainSubstring("rom"))
		Expect(out.String()).To(ContainSubstring("ram"))
	})

	It("should report invalid configs", func() {
		path := writeFile("bad.toml", `
[[devices]]
name = "ram"
size = 0
`)

		err := execute("validate", "--config", path)

		var verr *config.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
	})

	It("should take overrides from .env files", func() {
		path := writeFile("system.toml", systemFile)
		env := writeFile(".env", "BUSIM_MAX_TICKS=7\n")
		DeferCleanup(os.Unsetenv, config.EnvMaxTicks)

		Expect(execute("validate", "--config", path, "--env-file", env)).
			To(Succeed())

		Expect(out.String()).To(ContainSubstring("at most 7 ticks"))
	})

	It("should run the round trip", func() {
		path := writeFile("system.toml", systemFile)

		Expect(execute("run", "--config", path, "--words", "3",
			"--log-level", "error")).To(Succeed())
	})

	It("should run the built-in system", func() {
		Expect(execute("run", "-n", "2", "--log-level", "error")).To(Succeed())
	})

	It("should refuse an unknown log level", func() {
		err := execute("run", "--log-level", "loud")

		Expect(err).To(MatchError(ContainSubstring("log level")))
	})
})
