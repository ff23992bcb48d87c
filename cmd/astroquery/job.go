// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/astroquery/internal/cache"
	"github.com/pdiddy/astroquery/internal/catalog"
	"github.com/pdiddy/astroquery/internal/tap"
	"github.com/pdiddy/astroquery/pkg/types"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage asynchronous TAP jobs",
	Long: `Job lists and controls asynchronous TAP jobs. Jobs submitted by this tool
are recorded in the local registry, so a query that outlived --max-wait can
be checked and its results fetched later by job id.

A job missing from the registry can still be addressed with --service (the
job URL is built from the service's TAP endpoint) or --url.`,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _ := cmd.Flags().GetString("service")
		rt := newEnv()
		defer rt.Close()
		if rt.store == nil {
			return fmt.Errorf("the job registry is unavailable: the local cache database could not be opened")
		}
		jobs, err := rt.store.Jobs(rt.ctx, service)
		if err != nil {
			return err
		}
		formatJobs(jobs, os.Stdout)
		return nil
	},
}

var jobStatusCmd = &cobra.Command{
	Use:   "status ID",
	Short: "Show the current phase of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := newEnv()
		defer rt.Close()
		job, client, err := findJob(cmd, rt, args[0])
		if err != nil {
			return err
		}
		if err := refreshJob(rt, client, job); err != nil {
			return err
		}
		formatJob(job, os.Stdout)
		return nil
	},
}

var jobResultsCmd = &cobra.Command{
	Use:   "results ID",
	Short: "Fetch the results of a completed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")
		qc := queryConfig(cmd)

		rt := newEnv()
		defer rt.Close()
		job, client, err := findJob(cmd, rt, args[0])
		if err != nil {
			return err
		}
		if wait {
			err = client.Wait(rt.ctx, job, qc.MaxWait)
			saveJobPhase(rt, job)
			if err != nil {
				return err
			}
		} else {
			if err := refreshJob(rt, client, job); err != nil {
				return err
			}
			if job.Phase != types.PhaseCompleted {
				return fmt.Errorf("job %s is %s; use --wait to wait for it", job.ID, job.Phase)
			}
		}

		t, err := client.Results(rt.ctx, job)
		if err != nil {
			return err
		}
		rt.recordQuery(job.Service, job.Query, t.Len())
		return writeResult(cmd, catalog.QueryParams{Service: job.Service, Kind: "adql", ADQL: job.Query}, qc, t)
	},
}

var jobAbortCmd = &cobra.Command{
	Use:   "abort ID",
	Short: "Abort a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := newEnv()
		defer rt.Close()
		job, client, err := findJob(cmd, rt, args[0])
		if err != nil {
			return err
		}
		if err := client.Abort(rt.ctx, job); err != nil {
			return err
		}
		saveJobPhase(rt, job)
		fmt.Printf("aborted job %s\n", job.ID)
		return nil
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a job on the server and from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := newEnv()
		defer rt.Close()
		job, client, err := findJob(cmd, rt, args[0])
		if err != nil {
			return err
		}
		if err := client.Delete(rt.ctx, job); err != nil {
			return err
		}
		if rt.store != nil {
			if err := rt.store.DeleteJob(rt.ctx, job.Service, job.ID); err != nil {
				return err
			}
		}
		fmt.Printf("deleted job %s\n", job.ID)
		return nil
	},
}

// findJob locates a job by id in the registry, or builds its URL from
// --url or --service, and returns a client able to reach it.
func findJob(cmd *cobra.Command, rt *env, id string) (*types.Job, *tap.Client, error) {
	serviceName, _ := cmd.Flags().GetString("service")
	jobURL, _ := cmd.Flags().GetString("url")

	var job *types.Job
	if rt.store != nil && jobURL == "" {
		j, err := rt.store.Job(rt.ctx, id)
		switch {
		case err == nil:
			job = j
		case !errors.Is(err, cache.ErrJobNotFound):
			return nil, nil, err
		}
	}
	if job != nil {
		serviceName = job.Service
	}

	var client *tap.Client
	if serviceName != "" {
		svc, err := rt.service(serviceName)
		switch {
		case err == nil:
			client = svc.TAP
		case job != nil:
			log.WithError(err).Debug("Service of recorded job unavailable; using job URL")
		default:
			return nil, nil, err
		}
	}
	if client == nil {
		client = &tap.Client{
			Name:       serviceName,
			HTTP:       rt.client,
			UserAgent:  cfg.HTTP.UserAgent,
			MaxRetries: cfg.HTTP.MaxRetries,
		}
	}
	client.PollInterval = cfg.TAP.PollInterval
	client.MaxPollInterval = cfg.TAP.MaxPollInterval

	if job == nil {
		switch {
		case jobURL != "":
			job = &types.Job{ID: id, Service: orName(serviceName, "tap"), URL: jobURL}
		case client.BaseURL != "":
			job = &types.Job{ID: id, Service: serviceName, URL: client.JobURL(id)}
		default:
			return nil, nil, fmt.Errorf("job %s is not in the local registry; give --service or --url", id)
		}
	}
	return job, client, nil
}

func orName(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// refreshJob reads the job document from the server and stores the phase.
func refreshJob(rt *env, client *tap.Client, job *types.Job) error {
	info, err := client.JobInfo(rt.ctx, job.URL)
	if err != nil {
		return err
	}
	job.Phase = info.Phase
	job.Error = info.Error
	if job.Query == "" {
		job.Query = info.Query
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = info.CreatedAt
	}
	saveJobPhase(rt, job)
	return nil
}

// saveJobPhase writes the job's phase to the registry, recording the job
// if it was not known yet.
func saveJobPhase(rt *env, job *types.Job) {
	if rt.store == nil || job.Phase == "" {
		return
	}
	err := rt.store.UpdateJob(rt.ctx, job.Service, job.ID, job.Phase, job.Error)
	if errors.Is(err, cache.ErrJobNotFound) {
		err = rt.store.RecordJob(rt.ctx, job)
	}
	if err != nil {
		log.WithError(err).Debug("Could not update job registry")
	}
}

func formatJobs(jobs []types.Job, w io.Writer) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs recorded.")
		return
	}
	fmt.Fprintf(w, "%-24s  %-10s  %-10s  %-16s  %s\n", "ID", "Service", "Phase", "Submitted", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, j := range jobs {
		query := catalog.Truncate(strings.Join(strings.Fields(j.Query), " "), 40)
		fmt.Fprintf(w, "%-24s  %-10s  %-10s  %-16s  %s\n", j.ID, j.Service, j.Phase, humanize.Time(j.CreatedAt), query)
	}
	fmt.Fprintf(w, "\n%d jobs\n", len(jobs))
}

func formatJob(j *types.Job, w io.Writer) {
	fmt.Fprintf(w, "Job:     %s\n", j.ID)
	fmt.Fprintf(w, "Service: %s\n", j.Service)
	fmt.Fprintf(w, "URL:     %s\n", j.URL)
	fmt.Fprintf(w, "Phase:   %s\n", j.Phase)
	if !j.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created: %s (%s)\n", j.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(j.CreatedAt))
	}
	if j.Query != "" {
		fmt.Fprintf(w, "Query:   %s\n", j.Query)
	}
	if j.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", j.Error)
	}
}

func init() {
	for _, c := range []*cobra.Command{jobStatusCmd, jobResultsCmd, jobAbortCmd, jobDeleteCmd} {
		c.Flags().StringP("service", "s", "", "service the job was submitted to")
		c.Flags().String("url", "", "job URL, for jobs not in the local registry")
	}
	jobListCmd.Flags().StringP("service", "s", "", "only list jobs of this service")

	jobResultsCmd.Flags().Bool("wait", false, "wait for the job to finish first")
	jobResultsCmd.Flags().Duration("max-wait", 0, "how long --wait polls before giving up")
	jobResultsCmd.Flags().StringP("format", "f", "table", "output format: table, json, csv, votable")
	jobResultsCmd.Flags().String("save", "", "save the result to a YAML file")

	jobCmd.AddCommand(jobListCmd, jobStatusCmd, jobResultsCmd, jobAbortCmd, jobDeleteCmd)
	rootCmd.AddCommand(jobCmd)
}
