package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/school"
	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Run the browser login and cache the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := a.client.Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", tok.Extra["email"])
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	var (
		reference string
		params    map[string]string
		raw       bool
	)
	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "GET an endpoint, following every page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []sky.RequestOption{sky.WithReference(reference), sky.WithParams(params)}
			if raw {
				opts = append(opts, sky.WithRawData())
			}
			res, err := a.client.Get(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			switch res.Kind {
			case sky.ResultProviderError:
				return res.Err
			case sky.ResultRaw:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Raw)
			case sky.ResultEmpty:
				fmt.Fprintln(cmd.ErrOrStderr(), "no content")
				return nil
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), tableName(args[0]), res.Rows())
		},
	}
	cmd.Flags().StringVar(&reference, "reference", sky.DefaultReference, "api reference")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "query parameter key=value")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the first page as returned")
	return cmd
}

func (a *app) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users [role...]",
		Short: "List users with the given roles (default student)",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.school.Users(cmd.Context(), args...)
			if err != nil {
				return err
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), "users", t)
		},
	}
}

func levelFlags(cmd *cobra.Command, f *school.LevelFilter) {
	cmd.Flags().StringVar(&f.Abbreviation, "abbreviation", "", "level abbreviation, e.g. US")
	cmd.Flags().StringVar(&f.Name, "name", "", "level name, used when no abbreviation is given")
}

func (a *app) levelsCmd() *cobra.Command {
	var f school.LevelFilter
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List school levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.school.Levels(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), "levels", t)
		},
	}
	levelFlags(cmd, &f)
	return cmd
}

func (a *app) sectionsCmd() *cobra.Command {
	var f school.LevelFilter
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List academic sections with their head teacher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.school.Sections(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), "sections", t)
		},
	}
	levelFlags(cmd, &f)
	return cmd
}

func (a *app) termsCmd() *cobra.Command {
	var (
		offering   string
		activeOnly bool
	)
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "List terms of an offering type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if activeOnly {
				names, err := a.school.ActiveTerms(cmd.Context(), offering)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}
			t, err := a.school.Terms(cmd.Context(), offering)
			if err != nil {
				return err
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), "terms", t)
		},
	}
	cmd.Flags().StringVar(&offering, "offering", school.Academics, "offering type")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "print only the names of active terms")
	return cmd
}

func (a *app) enrollmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrollments [user-id...]",
		Short: "List enrollments of students (default all students)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			t, err := a.school.StudentEnrollments(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), "enrollments", t)
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Current academic, advisory and athletic enrollments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.school.EnrollmentSummary(cmd.Context())
			if err != nil {
				return err
			}
			return a.output().summary(cmd.Context(), cmd.OutOrStdout(), e)
		},
	}
}

func (a *app) advancedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advanced-list <id>",
		Short: "Fetch a legacy advanced list as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid list id %q: %w", args[0], err)
			}
			t, err := a.school.AdvancedList(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.output().table(cmd.Context(), cmd.OutOrStdout(), fmt.Sprintf("list_%d", id), t)
		},
	}
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, s := range args {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
