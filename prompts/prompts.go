// Package prompts manages the named prompt templates sent to the LLM.
// Templates live in memory as a name→body map seeded from compiled-in
// defaults, overlaid with whatever a JSON file on disk provides, and every
// mutation is written back immediately. The file is a flat UTF-8 JSON object
// {name: body}; bodies carry a single {text} placeholder for the OCR text.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Placeholder is the substitution marker each template body must contain.
const Placeholder = "{text}"

const DefaultName = "Default (Raisonnement Général)"

// NewBody is the body a freshly created prompt starts from.
const NewBody = "Écris ton prompt ici. Le texte OCR sera inséré à la place de {text}."

// Defaults returns the compiled-in template set. The map is a fresh copy on
// every call so callers can overlay it freely.
func Defaults() map[string]string {
	return map[string]string{
		DefaultName: "Tu es un expert en logique et en raisonnement, ta précision est primordiale.\n" +
			"CONTEXTE: Tu vas recevoir un texte brut extrait d'une image par un OCR.\n" +
			"Ce texte contient une question à choix multiples et plusieurs propositions de réponse.\n" +
			"--- TEXTE BRUT DE L'OCR ---\n{text}\n--- FIN DU TEXTE BRUT ---\n" +
			"MISSION: Analyse le texte brut. Ignore le bruit et les erreurs de l'OCR.\n" +
			"Identifie la question principale et les différentes propositions de réponse.\n" +
			"Choisis la proposition qui répond le mieux à la question.\n" +
			"FORMAT DE RÉPONSE: Réponds UNIQUEMENT avec le texte complet de la proposition.",
		"Pensée Critique (Conclusion/Idée)": "Tu es un expert en analyse de texte et en synthèse.\n" +
			"CONTEXTE: Paragraphe + question de conclusion/idée principale + choix.\n" +
			"--- TEXTE BRUT DE L'OCR ---\n{text}\n--- FIN DU TEXTE BRUT ---\n" +
			"MISSION: Choisis l'option la plus synthétique, pas un détail.\n" +
			"FORMAT: Réponds UNIQUEMENT avec l'option.",
		"Aptitude Numérique (Maths/Logique)": "Tu es un mathématicien rigoureux.\n" +
			"CONTEXTE: Problème mathématique/logique sous forme de QCM.\n" +
			"--- TEXTE BRUT DE L'OCR ---\n{text}\n--- FIN DU TEXTE BRUT ---\n" +
			"MISSION: Décompose, calcule précisément, compare aux options.\n" +
			"FORMAT: Réponds UNIQUEMENT avec l'option.",
		"Conditions Minimales": "Tu es expert en suffisance de données.\n" +
			"CONTEXTE: Question + (1) et (2).\n" +
			"--- TEXTE BRUT DE L'OCR ---\n{text}\n--- FIN DU TEXTE BRUT ---\n" +
			"MISSION: Évalue (1) seul, (2) seul, puis ensemble. Choisis la bonne option.\n" +
			"FORMAT: Réponds UNIQUEMENT avec l'option.",
		"Capacité Rédactionnelle (Français)": "Tu es linguiste/grammairien.\n" +
			"CONTEXTE: Vocabulaire, syntaxe, cohérence.\n" +
			"--- TEXTE BRUT DE L'OCR ---\n{text}\n--- FIN DU TEXTE BRUT ---\n" +
			"MISSION: Choisis la réponse la plus correcte.\n" +
			"FORMAT: Réponds UNIQUEMENT avec l'option.",
	}
}

// Store holds the current template set and its backing file. Mutations are
// persisted on the spot; concurrent external edits to the file are not
// reconciled (last writer wins).
type Store struct {
	path    string
	mu      sync.Mutex
	entries map[string]string
}

// Open loads the store at path. Entries found in a well-formed file override
// defaults with the same name. An absent or malformed file falls back to the
// defaults silently: a broken persisted store must never break startup.
func Open(path string) *Store {
	entries := Defaults()

	if data, err := os.ReadFile(path); err == nil {
		var extra map[string]string
		if err := json.Unmarshal(data, &extra); err == nil {
			for name, body := range extra {
				entries[name] = body
			}
		}
	}

	return &Store{path: path, entries: entries}
}

// Names returns the template names, sorted for stable display.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.entries[name]
	return body, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Set stores a template body under name and persists the whole map.
func (s *Store) Set(name, body string) error {
	if name == "" {
		return fmt.Errorf("prompt name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = body
	return s.save()
}

// New creates a template under a fresh key derived from base ("New Prompt",
// then "New Prompt 2", "New Prompt 3", …) and persists it. It never
// overwrites an existing entry.
func (s *Store) New(base string) (string, error) {
	if base == "" {
		base = "New Prompt"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := base
	for i := 2; ; i++ {
		if _, exists := s.entries[name]; !exists {
			break
		}
		name = fmt.Sprintf("%s %d", base, i)
	}

	s.entries[name] = NewBody
	if err := s.save(); err != nil {
		return "", err
	}
	return name, nil
}

// Delete removes name if present and persists; deleting a missing name is a
// no-op and does not touch the file.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; !exists {
		return nil
	}
	delete(s.entries, name)
	return s.save()
}

// Snapshot returns a copy of the current mapping.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.entries))
	for name, body := range s.entries {
		out[name] = body
	}
	return out
}

// save writes the full mapping as indented JSON. HTML escaping is off so
// non-ASCII prompt text round-trips byte-identical. Caller holds s.mu.
func (s *Store) save() error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.entries); err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write prompts file: %w", err)
	}
	return nil
}
