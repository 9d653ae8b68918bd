// Package messages holds all user-facing copy. Deployments can reword any
// entry through a YAML file; unset entries keep the compiled defaults.
package messages

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds the user-facing message templates
type Catalog struct {
	SubmissionWelcome   string `yaml:"submission_welcome"`
	SubmissionLocked    string `yaml:"submission_locked"`
	OutcomePass         string `yaml:"outcome_pass"`
	OutcomeFail         string `yaml:"outcome_fail"`
	RetentionNotice     string `yaml:"retention_notice"`
	Results             string `yaml:"results"`
	ChannelCreated      string `yaml:"channel_created"`
	ChannelDeleted      string `yaml:"channel_deleted"`
	GradeRecorded       string `yaml:"grade_recorded"`
	NoActiveChallenge   string `yaml:"no_active_challenge"`
	DuplicateSubmission string `yaml:"duplicate_submission"`
	AlreadyGraded       string `yaml:"already_graded"`
	InvalidState        string `yaml:"invalid_state"`
	NotSubmissionOwner  string `yaml:"not_submission_owner"`
	StaffOnly           string `yaml:"staff_only"`
	InvalidAmount       string `yaml:"invalid_amount"`
	SelfTarget          string `yaml:"self_target"`
	InsufficientPoints  string `yaml:"insufficient_points"`
	GenericError        string `yaml:"generic_error"`
}

// Default returns the catalog with compiled-in wording
func Default() *Catalog {
	return &Catalog{
		SubmissionWelcome: "~~---------------------------------------------------------------------------------------------~~\n" +
			"**%[1]s's Challenge Submission Channel**\n\n" +
			"*For %[1]s*: Post a link to your code submission here. Acceptable links include: Pastebin, Github (Gist or Repository), and Hastebin. Feel free to change your answer before the challenge ends.\n" +
			"\nThis channel will automatically lock when the challenge ends.\n" +
			"~~---------------------------------------------------------------------------------------------~~",
		SubmissionLocked:    "Your submission has been closed and will be looked at, look out for an announcement on the results. Thank you for participating!",
		OutcomePass:         "Your submission has been passed! **Congratulations**! You have been awarded the full reward and a shiny new role.",
		OutcomeFail:         "Your submission has been failed, it is great that you tried! You have been awarded half of the reward.",
		RetentionNotice:     "...You can view this channel for *24 hours*, it will be deleted after...",
		Results:             "%s\n\nResults for challenge **\"%s\"**.\nParticipants: %s\nWinners: %s\n",
		ChannelCreated:      "A submission channel has been created for you in #%s",
		ChannelDeleted:      "Challenge Submission Channel deleted.",
		GradeRecorded:       "Submission grade: %s",
		NoActiveChallenge:   "There is no active challenge.",
		DuplicateSubmission: "You already have a submission channel for this challenge.",
		AlreadyGraded:       "This submission has already been graded.",
		InvalidState:        "The challenge is not in the right state for that.",
		NotSubmissionOwner:  "This is not your submission channel.",
		StaffOnly:           "You must be staff to do that.",
		InvalidAmount:       "The amount must be a positive number.",
		SelfTarget:          "You cannot target yourself with that.",
		InsufficientPoints:  "You do not have enough points for that.",
		GenericError:        "An error occurred. Please try again later.",
	}
}

// Load returns the default catalog overlaid with entries from a YAML file.
// An empty path returns the defaults unchanged.
func Load(path string) (*Catalog, error) {
	catalog := Default()

	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	// Unmarshal over the defaults: only keys present in the file override
	if err := yaml.Unmarshal(data, catalog); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}

	slog.Info("message catalog loaded", "path", path)

	return catalog, nil
}

// WelcomeFor formats the submission channel welcome for a display name
func (c *Catalog) WelcomeFor(displayName string) string {
	return fmt.Sprintf(c.SubmissionWelcome, displayName)
}

// ChannelCreatedFor formats the open acknowledgement for a channel name
func (c *Catalog) ChannelCreatedFor(channelName string) string {
	return fmt.Sprintf(c.ChannelCreated, channelName)
}

// GradeRecordedFor formats the grading acknowledgement
func (c *Catalog) GradeRecordedFor(grade string) string {
	return fmt.Sprintf(c.GradeRecorded, grade)
}

// ResultsFor formats the final results announcement
func (c *Catalog) ResultsFor(roleMention, challengeName, participants, winners string) string {
	return fmt.Sprintf(c.Results, roleMention, challengeName, participants, winners)
}
