package service

import (
	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
)

func summarize(u *models.User) dto.UserSummary {
	if u == nil {
		return dto.UserSummary{}
	}
	return dto.UserSummary{ID: u.ID, Name: u.Name, ProfilePhotoURL: u.ProfilePhotoURL, Rating: u.Rating}
}

func summaryFrom(users map[string]models.User, id string) dto.UserSummary {
	if u, ok := users[id]; ok {
		return summarize(&u)
	}
	return dto.UserSummary{ID: id}
}

// swapView resolves both parties and, when callerID is a participant, annotates the view relative to them.
func swapView(s *models.SwapRequest, users map[string]models.User, callerID string) dto.SwapView {
	view := dto.SwapView{
		ID:                 s.ID,
		Requester:          summaryFrom(users, s.RequesterID),
		Recipient:          summaryFrom(users, s.RecipientID),
		RequesterSkill:     s.RequesterSkill,
		RecipientSkill:     s.RecipientSkill,
		Status:             s.Status,
		Message:            s.Message,
		ScheduledDate:      s.ScheduledDate,
		CompletedAt:        s.CompletedAt,
		CancelledBy:        s.CancelledBy,
		CancellationReason: s.CancellationReason,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
	if s.IsParticipant(callerID) {
		isRequester := s.RequesterID == callerID
		other := view.Recipient
		if !isRequester {
			other = view.Requester
		}
		view.IsRequester = &isRequester
		view.OtherUser = &other
	}
	return view
}

func feedbackView(f *models.Feedback, users map[string]models.User) dto.FeedbackView {
	return dto.FeedbackView{
		ID:            f.ID,
		SwapRequestID: f.SwapRequestID,
		From:          summaryFrom(users, f.FromUserID),
		To:            summaryFrom(users, f.ToUserID),
		Rating:        f.Rating,
		Comment:       f.Comment,
		SkillRated:    f.SkillRated,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func profileView(u *models.User, owner bool) dto.ProfileView {
	view := dto.ProfileView{
		ID:              u.ID,
		Name:            u.Name,
		Location:        u.Location,
		Bio:             u.Bio,
		ProfilePhotoURL: u.ProfilePhotoURL,
		SkillsOffered:   nonNil(u.SkillsOffered),
		SkillsWanted:    nonNil(u.SkillsWanted),
		Availability:    nonNil(u.Availability),
		Rating:          u.Rating,
		TotalRatings:    u.TotalRatings,
		CreatedAt:       u.CreatedAt,
	}
	if owner {
		isPublic := u.IsPublic
		view.Email = u.Email
		view.Role = u.Role
		view.IsPublic = &isPublic
	}
	return view
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
