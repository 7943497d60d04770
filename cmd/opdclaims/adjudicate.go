package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/pkg/types"
)

// adjudicateInput is the offline input file format: one member snapshot and
// one extracted claim, as JSON.
type adjudicateInput struct {
	Member struct {
		MemberID        string      `json:"member_id"`
		Name            string      `json:"name"`
		JoinDate        string      `json:"join_date"`
		YTDApproved     types.Money `json:"ytd_approved"`
		YTDClaimed      types.Money `json:"ytd_claimed"`
		PreauthObtained bool        `json:"preauth_obtained"`
		SameDayClaims   int         `json:"same_day_claims"`
		LastMonthClaims int         `json:"last_month_claims"`
	} `json:"member"`
	TreatmentDate string                `json:"treatment_date"`
	Claim         adjudication.RawClaim `json:"claim"`
}

func newAdjudicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adjudicate <input.json>",
		Short: "Adjudicate an extracted claim offline and print the result",
		Long: `Adjudicate runs the engine against a JSON file containing a member
snapshot and an extracted claim, without touching the database, object store,
or message broker.  Useful for replaying disputed claims and for verifying a
policy change before deploying it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var in adjudicateInput
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parse input file: %w", err)
			}

			joinDate, err := time.Parse("2006-01-02", in.Member.JoinDate)
			if err != nil {
				return fmt.Errorf("member.join_date: %w", err)
			}

			snapshot := adjudication.MemberSnapshot{
				MemberID:        in.Member.MemberID,
				Name:            in.Member.Name,
				JoinDate:        joinDate,
				YTDApproved:     in.Member.YTDApproved,
				YTDClaimed:      in.Member.YTDClaimed,
				PreauthObtained: in.Member.PreauthObtained,
				History: adjudication.ClaimHistory{
					SameDayClaims:   in.Member.SameDayClaims,
					LastMonthClaims: in.Member.LastMonthClaims,
				},
			}

			engine := adjudication.NewEngine(adjudication.PolicyFromConfig(cfg.Policy))
			result, err := engine.Adjudicate(snapshot, []adjudication.RawClaim{in.Claim}, in.TreatmentDate)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
