package course

// Course is one enrolled course as returned by the memberships listing.
type Course struct {
	ID   string
	Slug string
	Name string
}

// Resource is a single downloadable item discovered in a lecture.
type Resource struct {
	Name   string
	URL    string
	Format string
}

// Lecture holds the resources resolved for one lecture item.
type Lecture struct {
	ID        string
	Slug      string
	TypeName  string
	Resources []Resource
}

type Section struct {
	ID       string
	Slug     string
	Lectures []Lecture
}

type Module struct {
	Slug     string
	Sections []Section
}

// Syllabus is the resolved module/section/lecture tree of one course.
type Syllabus struct {
	CourseID string
	Slug     string
	Modules  []Module
}

// ResourceIterator is called for every resource in syllabus order.
// Return false to stop the iteration.
type ResourceIterator func(module Module, section Section, lecture Lecture, r Resource) (isContinue bool)

func (s Syllabus) EachResource(it ResourceIterator) {
	for _, m := range s.Modules {
		for _, sec := range m.Sections {
			for _, lec := range sec.Lectures {
				for _, r := range lec.Resources {
					if !it(m, sec, lec, r) {
						return
					}
				}
			}
		}
	}
}

// ResourceCount returns the number of resources in the syllabus.
func (s Syllabus) ResourceCount() (n int) {
	s.EachResource(func(Module, Section, Lecture, Resource) bool {
		n++
		return true
	})
	return n
}

// Resources flattens the syllabus into the discovery-order resource list.
func (s Syllabus) Resources() []Resource {
	r := make([]Resource, 0, 16)
	s.EachResource(func(_ Module, _ Section, _ Lecture, res Resource) bool {
		r = append(r, res)
		return true
	})
	return r
}
