// Package notifications keeps the signed-in user's in-app notification list.
//
// The list is empty and inert while nobody is signed in. Run follows a session
// source: on sign-in the container seeds a starter set of three notifications
// (one already read), on sign-out it clears. While active it polls a Feed every
// minute and prepends whatever drafts come back, keeping at most DefaultMaxRetained
// entries.
//
// UnreadCount is always computed from the current list.
package notifications
