package services

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/shared"
)

// ErrInvalidQuestContent reports that a generated payload could not be
// turned into a usable quest batch. Callers substitute fallback content.
var ErrInvalidQuestContent = errors.New("invalid quest content")

var questTypes = map[string]bool{
	shared.QuestTypeSpendingSlayer: true,
	shared.QuestTypeAssetBuilder:   true,
	shared.QuestTypeKnowledgeHeist: true,
	shared.QuestTypeLifestylePivot: true,
	shared.QuestTypeGeneral:        true,
}

var questDifficulties = map[string]bool{
	shared.DifficultyEasy:   true,
	shared.DifficultyMedium: true,
	shared.DifficultyHard:   true,
}

// ExtractJSONPayload pulls the first complete JSON array or object out of
// raw model output. Models wrap payloads in markdown fences and prose
// often enough that a plain Unmarshal is not an option.
func ExtractJSONPayload(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Strip markdown code fences, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := -1
	var opener, closer byte
	for i := 0; i < len(s); i++ {
		if s[i] == '[' || s[i] == '{' {
			start = i
			opener = s[i]
			if opener == '[' {
				closer = ']'
			} else {
				closer = '}'
			}
			break
		}
	}
	if start < 0 {
		return "", ErrInvalidQuestContent
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", ErrInvalidQuestContent
}

// ParseQuestBatch validates a generated batch. Enum drift is repaired in
// place; structural violations reject the whole batch.
func ParseQuestBatch(raw string) ([]dto.GeneratedQuest, error) {
	payload, err := ExtractJSONPayload(raw)
	if err != nil {
		return nil, err
	}

	var batch []dto.GeneratedQuest
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		return nil, ErrInvalidQuestContent
	}

	if len(batch) != shared.QuestBatchSize {
		return nil, ErrInvalidQuestContent
	}

	for i := range batch {
		if err := repairQuest(&batch[i]); err != nil {
			return nil, err
		}
	}

	return batch, nil
}

// ParseQuest validates a single generated quest.
func ParseQuest(raw string) (*dto.GeneratedQuest, error) {
	payload, err := ExtractJSONPayload(raw)
	if err != nil {
		return nil, err
	}

	var quest dto.GeneratedQuest
	if err := json.Unmarshal([]byte(payload), &quest); err != nil {
		return nil, ErrInvalidQuestContent
	}

	if err := repairQuest(&quest); err != nil {
		return nil, err
	}

	return &quest, nil
}

func repairQuest(q *dto.GeneratedQuest) error {
	if strings.TrimSpace(q.Title) == "" {
		return ErrInvalidQuestContent
	}

	if !questTypes[q.Type] {
		q.Type = shared.QuestTypeGeneral
	}
	if !questDifficulties[q.Difficulty] {
		q.Difficulty = shared.DifficultyEasy
	}
	if q.ContextSource != shared.ContextSourceTheory && q.ContextSource != shared.ContextSourceTransaction {
		q.ContextSource = shared.ContextSourceTheory
	}
	if q.XPReward <= 0 {
		q.XPReward = shared.DefaultQuestXPReward
	}

	if len(q.Questions) != shared.QuestQuestionCount {
		return ErrInvalidQuestContent
	}
	for _, question := range q.Questions {
		if strings.TrimSpace(question.Question) == "" {
			return ErrInvalidQuestContent
		}
		if len(question.Options) != shared.QuestOptionCount {
			return ErrInvalidQuestContent
		}
		if question.CorrectAnswer < 0 || int(question.CorrectAnswer) >= shared.QuestOptionCount {
			return ErrInvalidQuestContent
		}
	}

	return nil
}
