package cli

import (
	"context"

	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/common"
)

func (a *App) register(ctx context.Context, _ []string) error {
	email, err := a.readLine("Enter email")
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm password")
	if err != nil {
		return err
	}

	res, err := a.auth.Register(ctx, email, password, confirm)
	if err != nil {
		return err
	}

	if res.SignedIn {
		a.enterChat(res.User)
		return nil
	}
	if res.Message != "" {
		a.println(res.Message)
	}
	a.println("Registration successful. Use 'verify <uid> <token>' with the link from your email.")
	a.nav.Navigate(common.RouteLogin)
	return nil
}

func (a *App) login(ctx context.Context, _ []string) error {
	email, err := a.readLine("Enter email")
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	u, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.enterChat(u)
	return nil
}

func (a *App) loginWithGoogle(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.println("Usage: google <access-token>")
		return nil
	}
	u, err := a.auth.LoginWithGoogle(ctx, args[0])
	if err != nil {
		return err
	}
	a.enterChat(u)
	return nil
}

func (a *App) verifyEmail(ctx context.Context, args []string) error {
	if len(args) != 2 {
		a.println("Usage: verify <uid> <token>")
		return nil
	}
	u, err := a.auth.VerifyEmail(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.println("Email verified.")
	if a.auth.IsAuthenticated() {
		a.enterChat(u)
	}
	return nil
}

func (a *App) resetPassword(ctx context.Context, args []string) error {
	if len(args) != 2 {
		a.println("Usage: reset <uid> <token>")
		return nil
	}
	password, err := a.readSecret("Enter new password")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm new password")
	if err != nil {
		return err
	}

	msg, err := a.auth.ResetPassword(ctx, args[0], args[1], password, confirm)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Your password has been set."
	}
	a.println(msg, "You can log in now.")
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.activeFlow, a.activeSession = "", ""
	a.nav.Navigate(common.RouteHome)
	a.println("Logged out.")
	return nil
}

func (a *App) profile(ctx context.Context, _ []string) error {
	if err := a.auth.RefreshUser(ctx); err != nil {
		return err
	}
	printUser(a, a.auth.User())
	return nil
}

func (a *App) editProfile(ctx context.Context, _ []string) error {
	var upd models.ProfileUpdate
	var err error

	if upd.Name, err = a.readLine("Name (empty keeps current)"); err != nil {
		return err
	}
	if upd.Username, err = a.readLine("Username (empty keeps current)"); err != nil {
		return err
	}
	if upd.ImagePath, err = a.readLine("Profile image file (empty keeps current)"); err != nil {
		return err
	}

	u, err := a.auth.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	a.println("Profile updated.")
	printUser(a, u)
	return nil
}

func (a *App) enterChat(u *models.User) {
	a.nav.Navigate(common.RouteChat)
	a.printf("Welcome, %s!\n", u.DisplayName())
}

func printUser(a *App, u *models.User) {
	if u == nil {
		return
	}
	sub := "no"
	if u.IsSubscribed {
		sub = "yes"
	}
	a.printf("Email:      %s\n", u.Email)
	a.printf("Name:       %s\n", u.Name)
	a.printf("Username:   %s\n", u.Username)
	if u.ProfileImage != "" {
		a.printf("Image:      %s\n", u.ProfileImage)
	}
	a.printf("Subscribed: %s\n", sub)
	if u.DateJoined != "" {
		a.printf("Joined:     %s\n", u.DateJoined)
	}
}
