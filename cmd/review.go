package cmd

import (
	"io"

	"github.com/lepinkainen/bookhaven/internal/reviews"
)

// ReviewCmd groups the review commands
type ReviewCmd struct {
	Post   ReviewPostCmd   `cmd:"" help:"Write or replace your review of a book"`
	List   ReviewListCmd   `cmd:"" help:"List reviews of a book, or your own reviews"`
	Stats  ReviewStatsCmd  `cmd:"" help:"Show review count and average rating of a book"`
	Like   ReviewLikeCmd   `cmd:"" help:"Like a review"`
	Unlike ReviewUnlikeCmd `cmd:"" help:"Remove your like from a review"`
	Delete ReviewDeleteCmd `cmd:"" help:"Delete one of your reviews"`
}

// ReviewPostCmd creates or updates the caller's review
type ReviewPostCmd struct {
	Key    string `arg:"" help:"Google Books volume id"`
	Rating int    `short:"r" help:"Rating from 1 to 5" required:""`
	Title  string `short:"t" help:"Review title"`
	Text   string `help:"Review text"`
}

// ReviewListCmd lists reviews for a book, or the caller's reviews when no
// book is given
type ReviewListCmd struct {
	Key   string `arg:"" optional:"" help:"Google Books volume id"`
	Limit int    `short:"n" help:"Maximum number of reviews" default:"5"`
}

// ReviewStatsCmd prints review statistics for a book
type ReviewStatsCmd struct {
	Key string `arg:"" help:"Google Books volume id"`
}

// ReviewLikeCmd likes a review
type ReviewLikeCmd struct {
	ID string `arg:"" help:"Review id"`
}

// ReviewUnlikeCmd removes a like
type ReviewUnlikeCmd struct {
	ID string `arg:"" help:"Review id"`
}

// ReviewDeleteCmd deletes a review written by the caller
type ReviewDeleteCmd struct {
	ID string `arg:"" help:"Review id"`
}

func (c *ReviewPostCmd) Run(rt *Runtime) error {
	return withReviews(rt, true, func(svc *reviews.Service, userID string) error {
		review, err := svc.Post(rt.ctx, userID, c.Key, c.Rating, c.Title, c.Text)
		if err != nil {
			return err
		}
		return rt.render(review, func(w io.Writer) { writeReview(w, *review) })
	})
}

func (c *ReviewListCmd) Run(rt *Runtime) error {
	return withReviews(rt, c.Key == "", func(svc *reviews.Service, userID string) error {
		var (
			list []reviews.Review
			err  error
		)
		if c.Key == "" {
			list, err = svc.ListForUser(rt.ctx, userID)
		} else {
			list, err = svc.ListForBook(rt.ctx, c.Key, userID, c.Limit)
		}
		if err != nil {
			return err
		}
		return rt.render(list, func(w io.Writer) { writeReviews(w, list) })
	})
}

func (c *ReviewStatsCmd) Run(rt *Runtime) error {
	return withReviews(rt, false, func(svc *reviews.Service, _ string) error {
		stats, err := svc.Stats(rt.ctx, c.Key)
		if err != nil {
			return err
		}
		return rt.render(stats, func(w io.Writer) { writeReviewStats(w, stats) })
	})
}

func (c *ReviewLikeCmd) Run(rt *Runtime) error {
	return withReviews(rt, true, func(svc *reviews.Service, userID string) error {
		if err := svc.Like(rt.ctx, c.ID, userID); err != nil {
			return err
		}
		return rt.render(map[string]string{"liked": c.ID}, func(w io.Writer) {
			_, _ = io.WriteString(w, "Liked "+c.ID+"\n")
		})
	})
}

func (c *ReviewUnlikeCmd) Run(rt *Runtime) error {
	return withReviews(rt, true, func(svc *reviews.Service, userID string) error {
		if err := svc.Unlike(rt.ctx, c.ID, userID); err != nil {
			return err
		}
		return rt.render(map[string]string{"unliked": c.ID}, func(w io.Writer) {
			_, _ = io.WriteString(w, "Unliked "+c.ID+"\n")
		})
	})
}

func (c *ReviewDeleteCmd) Run(rt *Runtime) error {
	return withReviews(rt, true, func(svc *reviews.Service, userID string) error {
		if err := svc.Delete(rt.ctx, c.ID, userID); err != nil {
			return err
		}
		return rt.render(map[string]string{"deleted": c.ID}, func(w io.Writer) {
			_, _ = io.WriteString(w, "Deleted "+c.ID+"\n")
		})
	})
}

// withReviews hands fn the review service and the caller's user id, which is
// required when needUser is set and optional otherwise.
func withReviews(rt *Runtime, needUser bool, fn func(svc *reviews.Service, userID string) error) error {
	userID := rt.user
	if needUser {
		var err error
		if userID, err = rt.RequireUser(); err != nil {
			return err
		}
	}
	app, err := rt.App()
	if err != nil {
		return err
	}
	return fn(app.Reviews, userID)
}
