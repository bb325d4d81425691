package content

import (
	"sort"
	"strings"
)

// Post is one day's content within a schedule. ImageURL stays empty until
// an image generation call for the post succeeds.
type Post struct {
	ID                 int64      `json:"id"`
	ScheduleID         int64      `json:"schedule_id"`
	PostDate           Date       `json:"post_date"`
	PostText           string     `json:"post_text"`
	Hashtags           []string   `json:"hashtags"`
	ContentTheme       string     `json:"content_theme"`
	InsuranceTypeFocus string     `json:"insurance_type_focus"`
	ImageDescription   string     `json:"image_description"`
	ImageURL           string     `json:"image_url"`
	CreatedAt          *Timestamp `json:"created_at,omitempty"`
}

// HasImage reports whether the post carries a generated image.
func (p Post) HasImage() bool {
	return strings.TrimSpace(p.ImageURL) != ""
}

// HashtagLine joins the hashtags with single spaces.
func (p Post) HashtagLine() string {
	tags := make([]string, 0, len(p.Hashtags))
	for _, tag := range p.Hashtags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return strings.Join(tags, " ")
}

// ClipboardText is the text placed on the clipboard when a post is copied.
func (p Post) ClipboardText() string {
	text := strings.TrimSpace(p.PostText)
	tags := p.HashtagLine()
	if tags == "" {
		return text
	}
	return text + "\n\n" + tags
}

func (p Post) clone() Post {
	out := p
	out.Hashtags = append([]string(nil), p.Hashtags...)
	if p.CreatedAt != nil {
		ts := *p.CreatedAt
		out.CreatedAt = &ts
	}
	return out
}

// Schedule is a week of generated posts sharing one tone and one set of
// insurance focus areas.
type Schedule struct {
	ID               int64      `json:"id"`
	AgentID          int64      `json:"agent_id,omitempty"`
	WeekStartDate    Date       `json:"week_start_date"`
	WeekEndDate      Date       `json:"week_end_date"`
	GenerationPrompt string     `json:"generation_prompt"`
	Tone             string     `json:"tone"`
	InsuranceTypes   []string   `json:"insurance_types"`
	CreatedAt        *Timestamp `json:"created_at,omitempty"`
	Posts            []Post     `json:"posts"`
}

// Clone returns a deep copy so callers never share slices with the owner.
func (s Schedule) Clone() Schedule {
	out := s
	out.InsuranceTypes = append([]string(nil), s.InsuranceTypes...)
	if s.CreatedAt != nil {
		ts := *s.CreatedAt
		out.CreatedAt = &ts
	}
	if s.Posts != nil {
		out.Posts = make([]Post, len(s.Posts))
		for i, p := range s.Posts {
			out.Posts[i] = p.clone()
		}
	}
	return out
}

// SortedPosts orders posts by ascending PostDate. The API does not promise
// any ordering, so this runs on every render.
func (s Schedule) SortedPosts() []Post {
	posts := make([]Post, len(s.Posts))
	for i, p := range s.Posts {
		posts[i] = p.clone()
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].PostDate.Equal(posts[j].PostDate) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].PostDate.Before(posts[j].PostDate)
	})
	return posts
}

// PostsWithoutImages is the exact subset of posts lacking an image.
func (s Schedule) PostsWithoutImages() []Post {
	var missing []Post
	for _, p := range s.SortedPosts() {
		if !p.HasImage() {
			missing = append(missing, p)
		}
	}
	return missing
}

// Post finds a post by id.
func (s Schedule) Post(id int64) (Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return p.clone(), true
		}
	}
	return Post{}, false
}

// ImageCount reports how many posts already carry an image.
func (s Schedule) ImageCount() int {
	count := 0
	for _, p := range s.Posts {
		if p.HasImage() {
			count++
		}
	}
	return count
}

// WeekLabel renders the schedule's week range.
func (s Schedule) WeekLabel() string {
	return WeekRangeLabel(s.WeekStartDate, s.WeekEndDate)
}

// Generated is the outcome of a generate-schedule call. Existing is set when
// the server returned a schedule it already had for that week.
type Generated struct {
	Schedule Schedule
	Existing bool
	Message  string
}

// ImageResult is the response of a single-post image call.
type ImageResult struct {
	Message  string `json:"message"`
	ImageURL string `json:"image_url"`
	PostID   int64  `json:"post_id"`
}

// GeneratedImage names one post that received an image in a batch.
type GeneratedImage struct {
	PostID   int64  `json:"post_id"`
	ImageURL string `json:"image_url"`
}

// FailedImage names one post whose image failed in a batch.
type FailedImage struct {
	PostID int64  `json:"post_id"`
	Error  string `json:"error"`
}

// BatchImageResult is the response of the generate-all call.
type BatchImageResult struct {
	Message   string           `json:"message"`
	Generated []GeneratedImage `json:"generated_images"`
	Failed    []FailedImage    `json:"failed_generations"`
	TotalCost float64          `json:"total_cost"`
}

// DownloadedImage is a decoded image payload.
type DownloadedImage struct {
	Filename    string
	ContentType string
	Data        []byte
}
