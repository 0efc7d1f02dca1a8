/*
Copyright © 2024 Dave Rawks <dave@rawks.io>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

//go:generate stringer -type=PT ../pkg/runtime/protocol.go

package cmd

import (
	"log"
	_ "net/http/pprof"
	"os"

	logs "github.com/appscode/go/log/golog"
	"github.com/appscode/go/runtime"
	gearmand "github.com/drawks/gearhulk/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfg gearmand.Config
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Gearman server",
	Long: `Start the Gearman server with the specified configuration.

The server will listen for job submissions from clients and dispatch
them to available workers. It includes a web interface for monitoring
and managing jobs, as well as built-in Prometheus metrics.

The server uses LevelDB for persistent storage by default and supports
scheduled jobs via cron expressions.

Examples:
  # Start server with default settings
  gearhulk server

  # Start server on specific address
  gearhulk server --addr 0.0.0.0:4730

  # Start server with custom storage directory
  gearhulk server --storage-dir /var/lib/gearhulk

  # Start server with custom web interface address
  gearhulk server --web-addr :8080

  # Start server on a specific address (--verbose is accepted but does
  # not change logging)
  gearhulk server --addr 0.0.0.0:4730 --verbose`,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		c.Flags().VisitAll(func(flag *pflag.Flag) {
			log.Printf("FLAG: --%s=%q", flag.Name, flag.Value)
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		logs.InitLogs()
		defer logs.FlushLogs()
		defer runtime.HandleCrash()
		if err := gearmand.NewServer(cfg).Start(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	
	// GNU-style flags with both short and long forms
	serverCmd.Flags().StringVarP(&cfg.ListenAddr, "addr", "a", ":4730", "listening address, such as 0.0.0.0:4730")
	serverCmd.Flags().StringVarP(&cfg.Storage, "storage-dir", "s", os.TempDir()+"/gearmand", "directory where LevelDB file is stored")
	serverCmd.Flags().StringVarP(&cfg.WebAddress, "web-addr", "w", ":3000", "server HTTP API address")

	serverCmd.Flags().IntVar(&cfg.Threads, "threads", 4, "number of I/O goroutine pools connections are assigned to")
	serverCmd.Flags().IntVar(&cfg.WorkerWakeup, "worker-wakeup", 0, "max sleeping workers notified per job enqueue, 0 for unlimited")
	serverCmd.Flags().Uint8Var(&cfg.JobRetries, "job-retries", 0, "worker disconnects after which a job fails instead of being requeued, 0 for unlimited")
	serverCmd.Flags().BoolVar(&cfg.RoundRobin, "round-robin", false, "rotate fairly across a worker's registered functions instead of draining the first runnable one")
	serverCmd.Flags().IntVar(&cfg.MaxQueueSize, "max-queue-size", 0, "default per-priority queue cap for newly seen functions, 0 for unbounded")
	serverCmd.Flags().BoolVar(&cfg.EnableCron, "cron", true, "enable the cron-driven epoch job scheduler")
	serverCmd.Flags().BoolVar(&cfg.EnableMetrics, "metrics", true, "expose Prometheus metrics on the web address")

	// The verbose flag is accepted but not read by the server
	serverCmd.Flags().BoolP("verbose", "v", false, "accepted but has no effect on logging")
}
