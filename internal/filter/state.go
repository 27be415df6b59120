package filter

// State is the client-held view of the three filter cells. Every setter
// replaces the whole selection, so at most one cell is non-empty.
type State struct {
	selection Selection
}

// NewState returns a state with no active filter
func NewState() State {
	return State{selection: None()}
}

// Selection returns the active selection
func (s State) Selection() Selection { return s.selection }

// Category returns the category cell
func (s State) Category() string {
	name, _ := s.selection.CategoryName()
	return name
}

// Letter returns the letter cell
func (s State) Letter() string {
	letter, _ := s.selection.Letter()
	return letter
}

// Search returns the search cell
func (s State) Search() string {
	term, _ := s.selection.SearchTerm()
	return term
}

// SetCategory selects a category, clearing letter and search. An empty name
// clears the category when it is active and leaves other selections alone.
func (s State) SetCategory(name string) State {
	if name == "" {
		return s.clear(KindCategory)
	}
	return State{selection: Category(name)}
}

// SetLetter selects a letter, clearing category and search
func (s State) SetLetter(ch string) (State, error) {
	if ch == "" {
		return s.clear(KindLetter), nil
	}
	sel, err := Letter(ch)
	if err != nil {
		return s, err
	}
	return State{selection: sel}, nil
}

// SetSearch selects a search term, clearing category and letter
func (s State) SetSearch(term string) State {
	sel := Search(term)
	if sel.IsNone() {
		return s.clear(KindSearch)
	}
	return State{selection: sel}
}

// Clear resets the state to no filter
func (s State) Clear() State {
	return NewState()
}

func (s State) clear(kind Kind) State {
	if s.selection.Kind() == kind {
		return NewState()
	}
	return s
}
