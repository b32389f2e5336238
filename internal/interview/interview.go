// Package interview builds the interviewer context from the form inputs.
package interview

import (
	"fmt"
	"strings"

	"github.com/DCbrown/interview-ai-app/internal/apperr"
)

// Type is the kind of interview being practiced.
type Type string

const (
	TypeBehavioral Type = "behavioral"
	TypeLeetcode   Type = "leetcode"
	TypeProject    Type = "project"
)

// ParseType accepts one of the fixed interview types, case-insensitively.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeBehavioral, TypeLeetcode, TypeProject:
		return t, nil
	default:
		return "", fmt.Errorf("interview: unknown type %q", s)
	}
}

// Inputs are the form-collected session inputs. They are immutable once a session starts.
type Inputs struct {
	ResumeText         string
	JobURL             string
	JobDescriptionText string
	Type               Type
}

// Form is the raw submission before résumé extraction and scraping.
type Form struct {
	JobURL        string
	InterviewType string
	HasResume     bool
}

// Validate checks the raw form, reporting every missing field at once.
func (f Form) Validate() (Type, error) {
	fields := map[string]string{}
	if strings.TrimSpace(f.JobURL) == "" {
		fields["jobUrl"] = "Please enter a job description URL"
	}
	t, err := ParseType(f.InterviewType)
	if err != nil {
		fields["interviewType"] = "Please select an interview type"
	}
	if !f.HasResume {
		fields["resume"] = "Please upload your resume"
	}
	if len(fields) > 0 {
		return "", apperr.Validation("validate form", fields)
	}
	return t, nil
}

// Persona is the interviewer instruction block placed before the candidate context.
const Persona = `CONTEXT: You are an expert interviewer. You specialize in conducting interviews for software engineers.
-------
FORMAT: Help them prepare for the interview, the interview type they want to prepare for, the job description, and their resume.
-------
OBJECTIVE: Analyze the data you get and ask questions one by one based on the type of interview the user selected.
-------
INSTRUCTIONS:
- Start by asking the first question, then after the user finishes replying, ask the next one, wait for the user's reply, and continue like this.
- Once you are done asking questions for the interview, provide a feedback to the user to help them improve.
- You are to only receive english responses only and ignore other languages that are not english.
- You limit the answers to short answers only.`

// OpeningInstruction asks the model to greet the candidate and ask the first question.
// It is sent once and never stored in prompt history.
const OpeningInstruction = "Introduce yourself as Bob the Interviewer in one sentence, then ask the first question."

// SystemPrompt builds the prompt-only system turn from the inputs.
func SystemPrompt(in Inputs) string {
	var b strings.Builder
	b.WriteString(Persona)
	b.WriteString("\n------------\nINTERVIEW TYPE: ")
	b.WriteString(string(in.Type))
	b.WriteString("\n------------\nRESUME: ")
	b.WriteString(strings.TrimSpace(in.ResumeText))
	b.WriteString("\n------------\nJOB DESCRIPTION: ")
	b.WriteString(strings.TrimSpace(in.JobDescriptionText))
	b.WriteString("\n------------")
	return b.String()
}
